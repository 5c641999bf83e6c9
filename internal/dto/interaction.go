package dto

type InteractionResponse struct {
	ID           string `json:"id" example:"int_3f2a9c"`
	SessionID    string `json:"session_id" example:"ses_91b0d2"`
	Mode         string `json:"mode" example:"transcribe"`
	Transcript   string `json:"transcript,omitempty" example:"Hello world."`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms" example:"1840"`
	CreatedAt    string `json:"created_at" example:"2026-01-15T10:30:00Z"`
}

type InteractionListResponse struct {
	Interactions []InteractionResponse `json:"interactions"`
}

package interaction

import "time"

// Interaction is one completed dictation: what was said, what came back and
// the audio that produced it.
type Interaction struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"not null;index" json:"session_id"`
	Mode         string    `gorm:"not null" json:"mode"`
	Transcript   string    `json:"transcript"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Audio        []byte    `json:"-"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (i *Interaction) Failed() bool {
	return i.ErrorMessage != ""
}

package dto

type RecordingStatusResponse struct {
	State     string `json:"state" example:"recording"`
	SessionID string `json:"session_id,omitempty" example:"ses_91b0d2"`
}

type DeviceListResponse struct {
	Devices []string `json:"devices"`
	Current string   `json:"current,omitempty"`
}

type SelectDeviceRequest struct {
	Device string `json:"device"`
}

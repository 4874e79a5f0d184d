package model

type BufferedNote struct {
	Pitch    uint8  `json:"pitch"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Velocity uint8  `json:"velocity"`
	OffsetMs int64  `json:"offset_ms"`
}

type BufferResponse struct {
	SessionID string         `json:"session_id"`
	NumEvents int            `json:"num_events"`
	Notes     []BufferedNote `json:"notes"`
}

type StatusResponse struct {
	SessionID string `json:"session_id"`
	Connected bool   `json:"connected"`
	Device    string `json:"device,omitempty"`
	PedalDown bool   `json:"pedal_down"`
	NumEvents int    `json:"num_events"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}

package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeItem     WSMessageType = "item"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is the minimal envelope used for ping/pong.
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage reports counter movement on a running job.
type WSProgressMessage struct {
	Type         WSMessageType `json:"type"`
	JobID        string        `json:"jobId"`
	Status       JobStatus     `json:"status"`
	Total        int           `json:"total"`
	Processed    int           `json:"processed"`
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
}

// WSItemMessage reports one item reaching a terminal state.
type WSItemMessage struct {
	Type   WSMessageType `json:"type"`
	JobID  string        `json:"jobId"`
	ItemID string        `json:"itemId"`
	Status ItemStatus    `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// WSCompleteMessage announces the job's final state.
type WSCompleteMessage struct {
	Type    WSMessageType `json:"type"`
	JobID   string        `json:"jobId"`
	Summary JobSummary    `json:"summary"`
}

// WSErrorMessage reports a job-level error to subscribers.
type WSErrorMessage struct {
	Type  WSMessageType `json:"type"`
	JobID string        `json:"jobId"`
	Error WSError       `json:"error"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package entity

type VersionResponse struct {
	Version string `json:"version"`
}

type UploadResponse struct {
	ID string `json:"id"`
}

type StartResponse struct {
	BuildID   string `json:"buildId"`
	ResultURL string `json:"resultUrl"`
	LogsURL   string `json:"logsUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Operation states as reported by the forge server status endpoint.
const (
	StatePending  = "PENDING"
	StateReceived = "RECEIVED"
	StateStarted  = "STARTED"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
)

type OperationState struct {
	BuildID string `json:"buildId"`
	State   string `json:"state"`
}

// Terminal reports whether the state will not change on further polls.
func (s OperationState) Terminal() bool {
	return s.State == StateSuccess || s.State == StateFailure
}

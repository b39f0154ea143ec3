package usecase

import "time"

// OperationRecord is the locally persisted trace of one remote operation.
type OperationRecord struct {
	BuildID     string    `json:"buildId"`
	Operation   string    `json:"operation"`
	Platform    string    `json:"platform"`
	ProjectName string    `json:"projectName"`
	SubmittedAt time.Time `json:"submittedAt"`
	State       string    `json:"state"`
	ResultURL   string    `json:"resultUrl"`
	LogsURL     string    `json:"logsUrl"`
	Artifacts   []string  `json:"artifacts"`
	Error       string    `json:"error"`
}

// BuildParams carries the build command inputs.
type BuildParams struct {
	ProjectDir string
	Platform   string
	OutputDir  string
	Properties map[string]string
}

// CodesignParams carries the codesign command inputs.
type CodesignParams struct {
	Platform  string
	OutputDir string
	AppleID   string
}

// CleanupParams carries the cleanup command inputs.
type CleanupParams struct {
	ProjectName string
}

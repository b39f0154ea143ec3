package usecase

import (
	"context"
	"io"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

type ProgressFunc func(uploaded, total int64)

type SettingsStore interface {
	Load() (entity.Settings, error)
	Save(settings entity.Settings) error
}

type BuildIDStore interface {
	LoadLastBuildID() (string, error)
	SaveLastBuildID(id string) error
}

type Prompter interface {
	GetString(label string, allowEmpty bool) (string, error)
	GetPassword(label string) (string, error)
}

type ShellRunner interface {
	Run(cmd string) error
}

type ForgeAPI interface {
	GetVersion(ctx context.Context) (entity.VersionResponse, error)
	UploadProject(ctx context.Context, blobPath string, onProgress ProgressFunc) (entity.UploadResponse, error)
	StartOperation(ctx context.Context, request entity.OperationRequest) (entity.StartResponse, error)
	GetOperationState(ctx context.Context, buildID string) (entity.OperationState, error)
}

// ObjectStore resolves manifest, log and artifact URLs. Implementations
// handle both plain https URLs and s3:// object addresses.
type ObjectStore interface {
	GetJSON(ctx context.Context, rawURL string, target interface{}) error
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
	Download(ctx context.Context, rawURL string, localPath string) error
}

type ProjectInspector interface {
	HeadCommit(dir string) (string, error)
}

type HistoryStore interface {
	RecordOperation(op OperationRecord) error
	UpdateOperationState(buildID, state, errText string) error
	GetOperation(buildID string) (OperationRecord, error)
	ListOperations(limit int) ([]OperationRecord, error)
}

type ReleaseFetcher interface {
	FetchLatest(ctx context.Context) (entity.GitHubRelease, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

type UpdateApplier interface {
	Apply(reader io.Reader) error
}

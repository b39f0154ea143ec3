package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

type fakeForgeAPI struct {
	mu           sync.Mutex
	startCalls   int
	stateCalls   int
	versionCalls int
	lastRequest  entity.OperationRequest

	startResponse entity.StartResponse
	startErr      error
	stateFn       func(call int) (entity.OperationState, error)
}

func (f *fakeForgeAPI) GetVersion(ctx context.Context) (entity.VersionResponse, error) {
	f.mu.Lock()
	f.versionCalls++
	f.mu.Unlock()
	return entity.VersionResponse{Version: "test"}, nil
}

func (f *fakeForgeAPI) UploadProject(ctx context.Context, blobPath string, onProgress ProgressFunc) (entity.UploadResponse, error) {
	return entity.UploadResponse{ID: "blob-1"}, nil
}

func (f *fakeForgeAPI) StartOperation(ctx context.Context, request entity.OperationRequest) (entity.StartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastRequest = request
	if f.startErr != nil {
		return entity.StartResponse{}, f.startErr
	}
	response := f.startResponse
	if len(response.ResultURL) < 1 {
		response.ResultURL = "https://forge.example.com/results/" + request.BuildID + ".json"
	}
	response.BuildID = request.BuildID
	return response, nil
}

func (f *fakeForgeAPI) GetOperationState(ctx context.Context, buildID string) (entity.OperationState, error) {
	f.mu.Lock()
	f.stateCalls++
	call := f.stateCalls
	f.mu.Unlock()
	if f.stateFn != nil {
		return f.stateFn(call)
	}
	return entity.OperationState{BuildID: buildID, State: entity.StateSuccess}, nil
}

func (f *fakeForgeAPI) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls + f.stateCalls + f.versionCalls
}

type fakeObjectStore struct {
	mu           sync.Mutex
	manifest     entity.OperationResult
	manifestErr  error
	getJSONCalls int
	downloads    []string

	// Successive bodies handed back by Fetch; the last entry repeats.
	fetchBodies []string
}

func (f *fakeObjectStore) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	f.mu.Lock()
	f.getJSONCalls++
	f.mu.Unlock()
	if f.manifestErr != nil {
		return f.manifestErr
	}
	data, err := json.Marshal(f.manifest)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (f *fakeObjectStore) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetchBodies) > 0 {
		body := f.fetchBodies[0]
		if len(f.fetchBodies) > 1 {
			f.fetchBodies = f.fetchBodies[1:]
		}
		return ioutil.NopCloser(strings.NewReader(body)), nil
	}
	return ioutil.NopCloser(bytes.NewReader([]byte("artifact-bytes"))), nil
}

func (f *fakeObjectStore) Download(ctx context.Context, rawURL string, localPath string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, rawURL)
	f.mu.Unlock()
	return ioutil.WriteFile(localPath, []byte("artifact-bytes"), 0644)
}

func (f *fakeObjectStore) downloadedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.downloads...)
}

func validRequest() entity.OperationRequest {
	return entity.OperationRequest{
		Operation:   "build",
		Platform:    "ios",
		ProjectName: "demo-app",
		AccountKey:  "account-key",
	}
}

func newTestClient(api *fakeForgeAPI, store *fakeObjectStore) *OperationClient {
	return NewOperationClient(api, store, PollPolicy{Interval: time.Millisecond, Budget: time.Second}, false)
}

func TestSubmitGeneratesDistinctBuildIDs(t *testing.T) {
	api := &fakeForgeAPI{}
	client := newTestClient(api, &fakeObjectStore{})

	first, err := client.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := client.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, first.BuildID)
	assert.NotEmpty(t, second.BuildID)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Equal(t, second.BuildID, api.lastRequest.BuildID)
}

func TestSubmitValidationFailsBeforeNetwork(t *testing.T) {
	api := &fakeForgeAPI{}
	client := newTestClient(api, &fakeObjectStore{})

	request := validRequest()
	request.AccountKey = ""

	_, err := client.Submit(context.Background(), request)
	require.Error(t, err)
	_, ok := err.(ValidationError)
	assert.True(t, ok, "expected ValidationError, got %T", err)
	assert.Equal(t, 0, api.networkCalls())
}

func TestRunEmptyManifestRaisesRemoteFailure(t *testing.T) {
	api := &fakeForgeAPI{}
	store := &fakeObjectStore{
		manifest: entity.OperationResult{Errors: "clang exited with status 1"},
	}
	client := newTestClient(api, store)

	_, _, err := client.Run(context.Background(), validRequest(), t.TempDir(), []entity.Disposition{entity.DispositionPackage})
	require.Error(t, err)

	failure, ok := err.(RemoteOperationFailedError)
	require.True(t, ok, "expected RemoteOperationFailedError, got %T", err)
	assert.Contains(t, failure.Message, "clang exited with status 1")
	assert.Empty(t, store.downloadedURLs(), "downloadArtifacts must not run on an empty manifest")
}

func TestDownloadArtifactsFilterAndOrder(t *testing.T) {
	store := &fakeObjectStore{}
	client := newTestClient(&fakeForgeAPI{}, store)

	handle := entity.OperationHandle{BuildID: "b-1", Platform: "ios"}
	result := entity.OperationResult{
		BuildItems: []entity.BuildItem{
			{Disposition: entity.DispositionCertificate, URL: "https://forge.example.com/files/cert.p12"},
			{Disposition: entity.DispositionProvision, URL: "https://forge.example.com/files/profile.mobileprovision"},
			{Disposition: entity.DispositionPackage, URL: "https://forge.example.com/files/app.ipa"},
		},
	}
	destDir := t.TempDir()
	filter := []entity.Disposition{entity.DispositionCertificate, entity.DispositionProvision}

	paths, err := client.DownloadArtifacts(context.Background(), handle, result, destDir, filter)
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "ios.certificate.p12", filepath.Base(paths[0]))
	assert.Equal(t, "ios.provision.mobileprovision", filepath.Base(paths[1]))
	for _, path := range paths {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
	}

	urls := store.downloadedURLs()
	assert.Len(t, urls, 2)
	assert.NotContains(t, urls, "https://forge.example.com/files/app.ipa")
}

func TestDownloadArtifactsDeduplicatesNames(t *testing.T) {
	store := &fakeObjectStore{}
	client := newTestClient(&fakeForgeAPI{}, store)

	handle := entity.OperationHandle{BuildID: "b-2", Platform: "android"}
	result := entity.OperationResult{
		BuildItems: []entity.BuildItem{
			{Disposition: entity.DispositionPackage, URL: "https://forge.example.com/files/app.apk"},
			{Disposition: entity.DispositionPackage, URL: "https://forge.example.com/files/app-bundle.aab"},
		},
	}

	paths, err := client.DownloadArtifacts(context.Background(), handle, result, t.TempDir(), []entity.Disposition{entity.DispositionPackage})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "android.package.apk", filepath.Base(paths[0]))
	assert.Equal(t, "android.package.1.aab", filepath.Base(paths[1]))
}

func TestForbiddenErrorIsSanitized(t *testing.T) {
	api := &fakeForgeAPI{}
	store := &fakeObjectStore{
		manifest: entity.OperationResult{Errors: "upstream returned 403 Forbidden while signing"},
	}
	client := newTestClient(api, store)

	_, _, err := client.Run(context.Background(), validRequest(), t.TempDir(), []entity.Disposition{entity.DispositionCertificate})
	require.Error(t, err)

	failure, ok := err.(RemoteOperationFailedError)
	require.True(t, ok)
	assert.Equal(t, "The Code Signing Assistance service is temporary unavailable. Please try again later.", failure.Message)
}

func TestTimeoutStillFetchesResultOnce(t *testing.T) {
	api := &fakeForgeAPI{
		stateFn: func(call int) (entity.OperationState, error) {
			return entity.OperationState{State: entity.StateStarted}, nil
		},
	}
	store := &fakeObjectStore{manifest: entity.OperationResult{}}
	client := NewOperationClient(api, store, PollPolicy{Interval: time.Millisecond, Budget: 10 * time.Millisecond}, false)

	_, _, err := client.Run(context.Background(), validRequest(), t.TempDir(), []entity.Disposition{entity.DispositionPackage})
	require.Error(t, err)

	_, ok := err.(OperationTimeoutError)
	assert.True(t, ok, "expected OperationTimeoutError, got %T", err)
	assert.Equal(t, 1, store.getJSONCalls, "timeout must still attempt one result fetch")
}

func TestTimeoutRecoversWhenManifestIsComplete(t *testing.T) {
	api := &fakeForgeAPI{
		stateFn: func(call int) (entity.OperationState, error) {
			return entity.OperationState{State: entity.StateStarted}, nil
		},
	}
	store := &fakeObjectStore{
		manifest: entity.OperationResult{
			BuildItems: []entity.BuildItem{
				{Disposition: entity.DispositionPackage, URL: "https://forge.example.com/files/app.ipa"},
			},
		},
	}
	client := NewOperationClient(api, store, PollPolicy{Interval: time.Millisecond, Budget: 10 * time.Millisecond}, false)

	_, paths, err := client.Run(context.Background(), validRequest(), t.TempDir(), []entity.Disposition{entity.DispositionPackage})
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestAwaitCompletionToleratesTransientPollErrors(t *testing.T) {
	api := &fakeForgeAPI{
		stateFn: func(call int) (entity.OperationState, error) {
			if call < 3 {
				return entity.OperationState{}, assert.AnError
			}
			return entity.OperationState{State: entity.StateSuccess}, nil
		},
	}
	client := newTestClient(api, &fakeObjectStore{})

	err := client.AwaitCompletion(context.Background(), entity.OperationHandle{BuildID: "b-3"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, api.stateCalls, 3)
}

func TestAwaitCompletionHonorsCancellation(t *testing.T) {
	api := &fakeForgeAPI{
		stateFn: func(call int) (entity.OperationState, error) {
			return entity.OperationState{State: entity.StateStarted}, nil
		},
	}
	client := NewOperationClient(api, &fakeObjectStore{}, PollPolicy{Interval: 50 * time.Millisecond, Budget: time.Minute}, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := client.AwaitCompletion(ctx, entity.OperationHandle{BuildID: "b-4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b-4")
}

func TestSanitizeServerError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "forbidden",
			raw:  "HTTP 403 Forbidden",
			want: "The Code Signing Assistance service is temporary unavailable. Please try again later.",
		},
		{
			name: "plain",
			raw:  "  linker error  ",
			want: "linker error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeServerError(tt.raw))
		})
	}
}

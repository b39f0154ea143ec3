package usecase

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

// PollPolicy bounds the status polling loop of one remote operation.
type PollPolicy struct {
	Interval time.Duration
	Budget   time.Duration
}

// OperationClient drives one remote long-running operation to completion and
// materializes its outputs locally. A fresh build ID is generated per Submit
// and carried on every error raised afterwards.
type OperationClient struct {
	API   ForgeAPI
	Store ObjectStore
	Poll  PollPolicy
	Trace bool

	validate *validator.Validate
}

func NewOperationClient(api ForgeAPI, store ObjectStore, poll PollPolicy, trace bool) *OperationClient {
	if poll.Interval <= 0 {
		poll.Interval = 5 * time.Second
	}
	if poll.Budget <= 0 {
		poll.Budget = 30 * time.Minute
	}
	return &OperationClient{
		API:      api,
		Store:    store,
		Poll:     poll,
		Trace:    trace,
		validate: validator.New(),
	}
}

func (c *OperationClient) tracef(format string, args ...interface{}) {
	if c.Trace {
		log.Printf(format, args...)
	}
}

// Submit validates the request locally, generates the build ID and sends the
// request to the forge server. Validation failures never reach the network
// and carry no build ID.
func (c *OperationClient) Submit(ctx context.Context, request entity.OperationRequest) (entity.OperationHandle, error) {
	err := c.validate.Struct(request)
	if err != nil {
		return entity.OperationHandle{}, ValidationError{Message: validationMessage(err)}
	}

	request.BuildID = uuid.New().String()
	log.Printf("[Submit] starting %s operation %s for project %s", request.Operation, request.BuildID, request.ProjectName)

	response, err := c.API.StartOperation(ctx, request)
	if err != nil {
		return entity.OperationHandle{}, annotate(request.BuildID, err)
	}
	if len(response.Error) > 0 {
		c.tracef("[Submit] operation %s raw server error: %s", request.BuildID, response.Error)
		return entity.OperationHandle{}, RemoteOperationFailedError{
			BuildID: request.BuildID,
			Message: sanitizeServerError(response.Error),
		}
	}

	handle := entity.OperationHandle{
		BuildID:   request.BuildID,
		ResultURL: response.ResultURL,
		LogsURL:   response.LogsURL,
		Platform:  request.Platform,
	}
	return handle, nil
}

// AwaitCompletion polls the operation status until a terminal state. Poll
// failures are treated as transient: logged and retried within the budget.
// Budget exhaustion returns OperationTimeoutError; the caller is expected to
// attempt a best-effort result fetch afterwards since the remote side may
// have finished even if the status channel was unreliable.
func (c *OperationClient) AwaitCompletion(ctx context.Context, handle entity.OperationHandle) error {
	deadline := time.Now().Add(c.Poll.Budget)
	for {
		state, err := c.API.GetOperationState(ctx, handle.BuildID)
		if err != nil {
			if ctx.Err() != nil {
				return annotate(handle.BuildID, ctx.Err())
			}
			log.Printf("[AwaitCompletion] %v", TransientNetworkError{BuildID: handle.BuildID, Err: err})
		} else {
			c.tracef("[AwaitCompletion] operation %s state %s", handle.BuildID, state.State)
			if state.Terminal() {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return OperationTimeoutError{BuildID: handle.BuildID, Budget: c.Poll.Budget}
		}

		select {
		case <-ctx.Done():
			return annotate(handle.BuildID, ctx.Err())
		case <-time.After(c.Poll.Interval):
		}
	}
}

// FetchResult downloads and parses the manifest at the handle's result URL.
func (c *OperationClient) FetchResult(ctx context.Context, handle entity.OperationHandle) (entity.OperationResult, error) {
	var result entity.OperationResult
	err := c.Store.GetJSON(ctx, handle.ResultURL, &result)
	if err != nil {
		return result, annotate(handle.BuildID, err)
	}
	c.tracef("[FetchResult] operation %s manifest: %d item(s), errors=%q, stderr=%q",
		handle.BuildID, len(result.BuildItems), result.Errors, result.Stderr)
	return result, nil
}

// DownloadArtifacts downloads every manifest item matching the filter into
// destDir. Local file names are deterministic (platform plus disposition plus
// the remote file extension) and the returned paths keep manifest order.
// Items download concurrently but all of them have finished, or failed,
// before the call returns. A zero-item match means the server produced no
// usable output and is surfaced as RemoteOperationFailedError.
func (c *OperationClient) DownloadArtifacts(ctx context.Context, handle entity.OperationHandle, result entity.OperationResult, destDir string, filter []entity.Disposition) ([]string, error) {
	matched := result.ItemsWithDisposition(filter)
	if len(matched) == 0 {
		return nil, c.failedError(handle.BuildID, result)
	}

	err := os.MkdirAll(destDir, 0755)
	if err != nil {
		return nil, annotate(handle.BuildID, err)
	}

	paths := make([]string, len(matched))
	seen := map[entity.Disposition]int{}
	group, groupCtx := errgroup.WithContext(ctx)
	for index, item := range matched {
		localPath := filepath.Join(destDir, artifactFileName(handle.Platform, item, seen))
		paths[index] = localPath
		item := item
		group.Go(func() error {
			return c.downloadFile(groupCtx, handle.BuildID, item.URL, localPath)
		})
	}
	err = group.Wait()
	if err != nil {
		return nil, err
	}

	log.Printf("[DownloadArtifacts] operation %s: %d artifact(s) written to %s", handle.BuildID, len(paths), destDir)
	return paths, nil
}

// Run drives one operation end to end: submit, await completion, fetch the
// manifest and materialize the matching artifacts under destDir.
func (c *OperationClient) Run(ctx context.Context, request entity.OperationRequest, destDir string, filter []entity.Disposition) (entity.OperationHandle, []string, error) {
	handle, err := c.Submit(ctx, request)
	if err != nil {
		return handle, nil, err
	}
	paths, err := c.Drive(ctx, handle, destDir, filter)
	return handle, paths, err
}

// Drive takes an already submitted operation to completion: await the
// terminal state, fetch the manifest and materialize the matching artifacts
// under destDir. On a polling timeout one best-effort result fetch still
// happens; the timeout surfaces only when that fetch does not show a
// completed result.
func (c *OperationClient) Drive(ctx context.Context, handle entity.OperationHandle, destDir string, filter []entity.Disposition) ([]string, error) {
	waitErr := c.AwaitCompletion(ctx, handle)
	if waitErr != nil {
		if _, ok := waitErr.(OperationTimeoutError); !ok {
			return nil, waitErr
		}
		log.Printf("[Drive] %v, attempting a best-effort result fetch", waitErr)
	}

	result, err := c.FetchResult(ctx, handle)
	if err != nil {
		if waitErr != nil {
			return nil, waitErr
		}
		return nil, err
	}
	if !result.Succeeded() {
		if waitErr != nil {
			return nil, waitErr
		}
		return nil, c.failedError(handle.BuildID, result)
	}

	return c.DownloadArtifacts(ctx, handle, result, destDir, filter)
}

func (c *OperationClient) downloadFile(ctx context.Context, buildID, rawURL, localPath string) error {
	// An interrupted download may leave a partial file behind. Callers that
	// care should treat destDir as scratch space until the call returns.
	err := c.Store.Download(ctx, rawURL, localPath)
	if err != nil {
		return annotate(buildID, err)
	}
	return nil
}

func (c *OperationClient) failedError(buildID string, result entity.OperationResult) error {
	raw := strings.TrimSpace(result.Errors)
	if len(raw) == 0 {
		raw = strings.TrimSpace(result.Stderr)
	}
	c.tracef("[operation] %s raw server error: %s", buildID, raw)
	return RemoteOperationFailedError{BuildID: buildID, Message: sanitizeServerError(raw)}
}

// sanitizeServerError translates infrastructure error codes embedded in the
// server text into plain language. The raw text is kept at trace level only.
func sanitizeServerError(raw string) string {
	if strings.Contains(raw, "403 Forbidden") {
		return codesignUnavailableMessage
	}
	return strings.TrimSpace(raw)
}

func artifactFileName(platform string, item entity.BuildItem, seen map[entity.Disposition]int) string {
	ext := ""
	parsed, err := url.Parse(item.URL)
	if err == nil {
		ext = path.Ext(parsed.Path)
	}
	name := strings.ToLower(fmt.Sprintf("%s.%s", platform, string(item.Disposition)))
	count := seen[item.Disposition]
	seen[item.Disposition] = count + 1
	if count > 0 {
		name = fmt.Sprintf("%s.%d", name, count)
	}
	return name + ext
}

func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		fields = append(fields, fieldErr.Field())
	}
	return "invalid or missing fields: " + strings.Join(fields, ", ")
}

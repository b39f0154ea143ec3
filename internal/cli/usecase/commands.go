package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

// CLIUsecase wires the command surface of appforge-cli to the forge server
// and the local state stores.
type CLIUsecase struct {
	Client   *OperationClient
	API      ForgeAPI
	Store    ObjectStore
	Settings SettingsStore
	BuildIDs BuildIDStore
	Prompter Prompter
	Shell    ShellRunner
	Projects ProjectInspector
	History  HistoryStore
	Releases ReleaseFetcher
	Updater  UpdateApplier
	Workdir  string
	Version  string
}

func (u *CLIUsecase) loadSettings() (entity.Settings, error) {
	settings, err := u.Settings.Load()
	if err != nil {
		return settings, err
	}
	if len(settings.ForgeAddress) < 1 || len(settings.AccountKey) < 1 {
		return settings, ErrConfigMissing
	}
	return settings, nil
}

func (u *CLIUsecase) checkServerVersion(ctx context.Context) error {
	response, err := u.API.GetVersion(ctx)
	if err != nil {
		return err
	}
	if response.Version != u.Version {
		log.Println("[checkServerVersion] server version", response.Version)
		log.Println("[checkServerVersion] local version", u.Version)
		return errors.New("client version mismatch, please update your appforge-cli")
	}
	return nil
}

// Build submits a native build of the project directory and downloads the
// resulting package artifacts into the output directory.
func (u *CLIUsecase) Build(ctx context.Context, params BuildParams) ([]string, error) {
	settings, err := u.loadSettings()
	if err != nil {
		return nil, err
	}

	// Local validation happens before the first network round-trip.
	if len(params.Platform) < 1 {
		return nil, ValidationError{Message: "--platform should not be empty"}
	}
	if len(params.ProjectDir) < 1 {
		return nil, ValidationError{Message: "--project should not be empty"}
	}
	info, err := os.Stat(params.ProjectDir)
	if err != nil || !info.IsDir() {
		return nil, ValidationError{Message: "project directory does not exist: " + params.ProjectDir}
	}

	err = u.checkServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	projectName := filepath.Base(params.ProjectDir)

	// Best effort: the commit hash only rides along when the project is a
	// git repository.
	commit, err := u.Projects.HeadCommit(params.ProjectDir)
	if err != nil {
		log.Printf("[Build] no commit info for %s: %v", params.ProjectDir, err)
		commit = ""
	}

	tarballPath, err := u.packProject(params.ProjectDir)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tarballPath)

	log.Println("[Build] uploading project blob...")
	upload, err := u.API.UploadProject(ctx, tarballPath, func(uploaded, total int64) {
		if total > 0 {
			fmt.Printf("\ruploading... %d%%", uploaded*100/total)
		}
	})
	fmt.Println()
	if err != nil {
		return nil, err
	}

	request := entity.OperationRequest{
		Operation:   "build",
		Platform:    params.Platform,
		ProjectName: projectName,
		AccountKey:  settings.AccountKey,
		Commit:      commit,
		Tarball:     upload.ID,
		Properties:  params.Properties,
	}

	outputDir := params.OutputDir
	if len(outputDir) < 1 {
		outputDir = filepath.Join(params.ProjectDir, "dist")
	}

	handle, err := u.Client.Submit(ctx, request)
	if err != nil {
		return nil, err
	}
	u.recordSubmission(request, handle)

	paths, err := u.Client.Drive(ctx, handle, outputDir, []entity.Disposition{entity.DispositionPackage})
	u.finishOperation(handle, paths, err)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Codesign generates code-signing artifacts remotely and downloads the
// certificate and provisioning profile. Missing Apple credentials are
// prompted for interactively.
func (u *CLIUsecase) Codesign(ctx context.Context, params CodesignParams) ([]string, error) {
	settings, err := u.loadSettings()
	if err != nil {
		return nil, err
	}
	err = u.checkServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	platform := params.Platform
	if len(platform) < 1 {
		platform = "ios"
	}

	appleID := params.AppleID
	if len(appleID) < 1 {
		appleID = settings.AppleID
	}
	if len(appleID) < 1 {
		appleID, err = u.Prompter.GetString("Apple ID", false)
		if err != nil {
			return nil, err
		}
	}
	password, err := u.Prompter.GetPassword("Apple ID password")
	if err != nil {
		return nil, err
	}

	request := entity.OperationRequest{
		Operation:   "codesign",
		Platform:    platform,
		ProjectName: "codesign",
		AccountKey:  settings.AccountKey,
		Properties: map[string]string{
			"appleId":         appleID,
			"appleIdPassword": password,
		},
	}

	outputDir := params.OutputDir
	if len(outputDir) < 1 {
		outputDir = filepath.Join(u.Workdir, "codesign")
	}

	handle, err := u.Client.Submit(ctx, request)
	if err != nil {
		return nil, err
	}
	u.recordSubmission(request, handle)

	filter := []entity.Disposition{entity.DispositionCertificate, entity.DispositionProvision}
	paths, err := u.Client.Drive(ctx, handle, outputDir, filter)
	u.finishOperation(handle, paths, err)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Cleanup asks the forge server to drop the remote workspace of a project.
// It produces no artifacts; success is judged by the final operation state.
func (u *CLIUsecase) Cleanup(ctx context.Context, params CleanupParams) error {
	settings, err := u.loadSettings()
	if err != nil {
		return err
	}
	if len(params.ProjectName) < 1 {
		return ValidationError{Message: "--project should not be empty"}
	}

	request := entity.OperationRequest{
		Operation:   "cleanup",
		ProjectName: params.ProjectName,
		AccountKey:  settings.AccountKey,
	}

	handle, err := u.Client.Submit(ctx, request)
	if err != nil {
		return err
	}
	u.recordSubmission(request, handle)

	err = u.Client.AwaitCompletion(ctx, handle)
	if err != nil {
		u.updateHistory(handle.BuildID, entity.StateFailure, err.Error())
		return err
	}

	state, err := u.API.GetOperationState(ctx, handle.BuildID)
	if err != nil {
		return annotate(handle.BuildID, err)
	}
	u.updateHistory(handle.BuildID, state.State, "")
	if state.State != entity.StateSuccess {
		return RemoteOperationFailedError{BuildID: handle.BuildID, Message: "cleanup did not finish cleanly"}
	}
	log.Printf("[Cleanup] workspace of %s removed, operation %s", params.ProjectName, handle.BuildID)
	return nil
}

// Status returns the current state of an operation. An empty build ID falls
// back to the most recently submitted one.
func (u *CLIUsecase) Status(ctx context.Context, buildID string) (string, error) {
	_, err := u.loadSettings()
	if err != nil {
		return "", err
	}
	buildID, err = u.resolveBuildID(buildID)
	if err != nil {
		return "", err
	}

	state, err := u.API.GetOperationState(ctx, buildID)
	if err != nil {
		return "", annotate(buildID, err)
	}
	u.updateHistory(buildID, state.State, "")
	return state.State, nil
}

// Log fetches the remote operation log and mirrors it into the local log
// file under the workdir. With follow enabled it keeps refreshing until the
// operation reaches a terminal state.
func (u *CLIUsecase) Log(ctx context.Context, buildID string, follow bool, sink io.Writer) error {
	_, err := u.loadSettings()
	if err != nil {
		return err
	}
	buildID, err = u.resolveBuildID(buildID)
	if err != nil {
		return err
	}

	record, err := u.History.GetOperation(buildID)
	if err != nil {
		return annotate(buildID, err)
	}
	if len(record.LogsURL) < 1 {
		return annotate(buildID, errors.New("no log location recorded for this operation"))
	}

	localPath := filepath.Join(u.Workdir, "logs", buildID+".log")
	err = os.MkdirAll(filepath.Dir(localPath), 0755)
	if err != nil {
		return annotate(buildID, err)
	}

	var mirrored int64
	for {
		mirrored, err = u.mirrorLog(ctx, record.LogsURL, localPath, sink, mirrored, follow)
		if err != nil {
			return annotate(buildID, err)
		}
		if !follow {
			return nil
		}
		state, err := u.API.GetOperationState(ctx, buildID)
		if err == nil && state.Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return annotate(buildID, ctx.Err())
		case <-time.After(u.Client.Poll.Interval):
		}
	}
}

// Update replaces the running binary with the latest released one.
func (u *CLIUsecase) Update(ctx context.Context) error {
	release, err := u.Releases.FetchLatest(ctx)
	if err != nil {
		return err
	}

	var downloadURL string
	for _, asset := range release.Assets {
		if asset.Name == "appforge-cli" {
			downloadURL = asset.BrowserDownloadURL
			break
		}
	}
	if len(downloadURL) < 1 {
		return errors.New("no appforge-cli asset in the latest release")
	}

	log.Println("[Update] downloading " + downloadURL)
	reader, err := u.Releases.Download(ctx, downloadURL)
	if err != nil {
		return err
	}
	defer reader.Close()

	return u.Updater.Apply(reader)
}

// ListHistory returns the locally recorded operations, most recent first.
func (u *CLIUsecase) ListHistory(limit int) ([]OperationRecord, error) {
	return u.History.ListOperations(limit)
}

func (u *CLIUsecase) resolveBuildID(buildID string) (string, error) {
	if len(buildID) > 0 {
		return buildID, nil
	}
	buildID, err := u.BuildIDs.LoadLastBuildID()
	if err != nil || len(buildID) < 1 {
		return "", ErrBuildIDMissing
	}
	return buildID, nil
}

// packProject tarballs the project directory into the workdir tmp space.
func (u *CLIUsecase) packProject(projectDir string) (string, error) {
	tmpID := uuid.New().String()
	tmpDir := filepath.Join(u.Workdir, "tmp")
	err := os.MkdirAll(tmpDir, 0755)
	if err != nil {
		return "", err
	}
	tarballPath := filepath.Join(tmpDir, tmpID+".tar.gz")

	log.Println("[packProject] compressing " + projectDir)
	err = u.Shell.Run("cd " + projectDir + " && tar -zcf " + tarballPath + " .")
	if err != nil {
		return "", err
	}
	return tarballPath, nil
}

// mirrorLog appends the not-yet-mirrored tail of the remote log to localPath
// and returns the new mirrored length. The local file is only ever appended
// to, so a concurrent tailer never sees it truncated.
func (u *CLIUsecase) mirrorLog(ctx context.Context, logsURL, localPath string, sink io.Writer, offset int64, quiet bool) (int64, error) {
	reader, err := u.Store.Fetch(ctx, logsURL)
	if err != nil {
		return offset, err
	}
	defer reader.Close()

	if offset > 0 {
		_, err = io.CopyN(ioutil.Discard, reader, offset)
		if err == io.EOF {
			// Remote log shorter than what was mirrored, nothing new.
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if offset == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	out, err := os.OpenFile(localPath, flags, 0644)
	if err != nil {
		return offset, err
	}
	defer out.Close()

	// In follow mode the sink is fed by the tailer on the local file, so the
	// fetched content only lands on disk here.
	var target io.Writer = out
	if !quiet && sink != nil {
		target = io.MultiWriter(out, sink)
	}
	written, err := io.Copy(target, reader)
	return offset + written, err
}

func (u *CLIUsecase) recordSubmission(request entity.OperationRequest, handle entity.OperationHandle) {
	if u.History == nil {
		return
	}
	err := u.History.RecordOperation(OperationRecord{
		BuildID:     handle.BuildID,
		Operation:   request.Operation,
		Platform:    request.Platform,
		ProjectName: request.ProjectName,
		SubmittedAt: time.Now().UTC(),
		State:       entity.StatePending,
		ResultURL:   handle.ResultURL,
		LogsURL:     handle.LogsURL,
	})
	if err != nil {
		log.Printf("[recordSubmission] failed to record operation %s: %v", handle.BuildID, err)
	}
	if u.BuildIDs != nil && len(handle.BuildID) > 0 {
		err = u.BuildIDs.SaveLastBuildID(handle.BuildID)
		if err != nil {
			log.Printf("[recordSubmission] failed to save last build ID: %v", err)
		}
	}
}

func (u *CLIUsecase) updateHistory(buildID, state, errText string) {
	if u.History == nil || len(buildID) < 1 {
		return
	}
	err := u.History.UpdateOperationState(buildID, state, errText)
	if err != nil {
		log.Printf("[updateHistory] failed to update operation %s: %v", buildID, err)
	}
}

// finishOperation records the terminal outcome of an operation whose
// submission was already recorded.
func (u *CLIUsecase) finishOperation(handle entity.OperationHandle, paths []string, runErr error) {
	if len(handle.BuildID) < 1 {
		return
	}
	if runErr != nil {
		u.updateHistory(handle.BuildID, entity.StateFailure, runErr.Error())
		return
	}
	if u.History == nil {
		return
	}
	record, err := u.History.GetOperation(handle.BuildID)
	if err == nil {
		record.State = entity.StateSuccess
		record.Artifacts = paths
		err = u.History.RecordOperation(record)
	}
	if err != nil {
		log.Printf("[finishOperation] failed to record outcome of %s: %v", handle.BuildID, err)
	}
}

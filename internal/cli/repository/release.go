package repository

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	update "github.com/inconshreveable/go-update"

	"github.com/appforge/appforge-go/internal/cli/entity"
	"github.com/appforge/appforge-go/pkg/httputil"
)

const latestReleaseURL = "https://api.github.com/repos/appforge/appforge-go/releases/latest"

// GitHubReleaseFetcher reads release metadata and binaries from GitHub.
type GitHubReleaseFetcher struct {
	Client *http.Client
}

func NewGitHubReleaseFetcher() *GitHubReleaseFetcher {
	return &GitHubReleaseFetcher{Client: &http.Client{Timeout: time.Minute}}
}

func (f *GitHubReleaseFetcher) FetchLatest(ctx context.Context) (entity.GitHubRelease, error) {
	release := entity.GitHubRelease{}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, latestReleaseURL, nil)
	if err != nil {
		return release, err
	}
	response, err := f.Client.Do(request)
	if err != nil {
		return release, err
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return release, err
	}
	err = json.Unmarshal(body, &release)
	return release, err
}

func (f *GitHubReleaseFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	return httputil.FetchWithRetry(ctx, f.Client, url, 3, time.Second, nil)
}

// BinaryUpdater swaps the running executable with a downloaded one.
type BinaryUpdater struct{}

func (BinaryUpdater) Apply(reader io.Reader) error {
	return update.Apply(reader, update.Options{})
}

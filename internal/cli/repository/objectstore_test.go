package repository

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

func TestObjectStoreGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buildItems":[{"disposition":"PACKAGE","url":"https://files.example.com/app.ipa"}],"errors":""}`))
	}))
	defer server.Close()

	store := NewObjectStore(nil)
	store.RetryDelay = 0

	var result entity.OperationResult
	err := store.GetJSON(context.Background(), server.URL, &result)
	require.NoError(t, err)
	require.Len(t, result.BuildItems, 1)
	assert.Equal(t, entity.DispositionPackage, result.BuildItems[0].Disposition)
}

func TestObjectStoreDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-artifact"))
	}))
	defer server.Close()

	store := NewObjectStore(nil)
	store.RetryDelay = 0

	localPath := filepath.Join(t.TempDir(), "artifact.ipa")
	err := store.Download(context.Background(), server.URL, localPath)
	require.NoError(t, err)

	data, err := ioutil.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "binary-artifact", string(data))
}

func TestObjectStoreRejectsS3WithoutClient(t *testing.T) {
	store := NewObjectStore(nil)

	_, err := store.Fetch(context.Background(), "s3://bucket/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	err = store.Download(context.Background(), "s3://bucket/key", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}

func TestFileStateStoreRoundTrip(t *testing.T) {
	workdir := filepath.Join(t.TempDir(), ".appforge")
	store := NewFileStateStore(workdir)

	err := store.Save(entity.Settings{
		ForgeAddress: "https://forge.example.com",
		AccountKey:   "7f3a9c",
		AppleID:      "dev@example.com",
	})
	require.NoError(t, err)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://forge.example.com", settings.ForgeAddress)
	assert.Equal(t, "7f3a9c", settings.AccountKey)
	assert.Equal(t, "dev@example.com", settings.AppleID)

	err = store.SaveLastBuildID("build-42")
	require.NoError(t, err)
	last, err := store.LoadLastBuildID()
	require.NoError(t, err)
	assert.Equal(t, "build-42", last)

	// missing values read as empty, not as errors
	empty := NewFileStateStore(filepath.Join(t.TempDir(), "missing"))
	settings, err = empty.Load()
	require.NoError(t, err)
	assert.Equal(t, entity.Settings{}, settings)

	_, err = os.Stat(filepath.Join(workdir, "ACCOUNT_KEY"))
	assert.NoError(t, err)
}

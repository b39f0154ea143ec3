package repository

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/appforge/appforge-go/internal/cli/entity"
)

// FileStateStore keeps the per-user CLI state as plain files under the
// workdir (~/.appforge), one value per file.
type FileStateStore struct {
	Workdir string
}

func NewFileStateStore(workdir string) *FileStateStore {
	return &FileStateStore{Workdir: workdir}
}

func (s *FileStateStore) Load() (entity.Settings, error) {
	settings := entity.Settings{
		ForgeAddress: s.readValue("FORGE_ADDRESS"),
		AccountKey:   s.readValue("ACCOUNT_KEY"),
		AppleID:      s.readValue("APPLE_ID"),
	}
	return settings, nil
}

func (s *FileStateStore) Save(settings entity.Settings) error {
	err := os.MkdirAll(s.Workdir, 0755)
	if err != nil {
		return err
	}
	err = s.writeValue("FORGE_ADDRESS", settings.ForgeAddress)
	if err != nil {
		return err
	}
	err = s.writeValue("ACCOUNT_KEY", settings.AccountKey)
	if err != nil {
		return err
	}
	if len(settings.AppleID) > 0 {
		err = s.writeValue("APPLE_ID", settings.AppleID)
	}
	return err
}

func (s *FileStateStore) LoadLastBuildID() (string, error) {
	return s.readValue("LAST_BUILD_ID"), nil
}

func (s *FileStateStore) SaveLastBuildID(id string) error {
	err := os.MkdirAll(s.Workdir, 0755)
	if err != nil {
		return err
	}
	return s.writeValue("LAST_BUILD_ID", id)
}

func (s *FileStateStore) readValue(name string) string {
	data, err := ioutil.ReadFile(filepath.Join(s.Workdir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *FileStateStore) writeValue(name, value string) error {
	return ioutil.WriteFile(filepath.Join(s.Workdir, name), []byte(value), 0600)
}

package credential

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Go-routine-4595/equipment-dash/model"
)

type CredentialConfig struct {
	TokenFile string `yaml:"TokenFile"`
}

// FileStore keeps the bearer token issued at login in a single file.
type FileStore struct {
	path string
}

func NewFileStore(conf CredentialConfig) FileStore {
	path := conf.TokenFile
	if path == "" {
		path = ".equipment-dash-token"
	}
	return FileStore{path: path}
}

func (s FileStore) Path() string {
	return s.path
}

// Load returns the stored credential. A missing file is not an error: the
// empty credential is returned and requests go out unauthenticated.
func (s FileStore) Load() (model.Credential, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Credential{}, nil
	}
	if err != nil {
		return model.Credential{}, errors.Join(err, errors.New("read token file"))
	}
	return model.Credential{Token: strings.TrimSpace(string(b))}, nil
}

// Save writes the token, readable by the current user only.
func (s FileStore) Save(cred model.Credential) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Join(err, errors.New("create token directory"))
		}
	}
	if err := os.WriteFile(s.path, []byte(cred.Token+"\n"), 0o600); err != nil {
		return errors.Join(err, errors.New("write token file"))
	}
	return nil
}

// Clear removes the stored token.
func (s FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

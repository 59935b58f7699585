package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the session and version marker in a single JSON file,
// the desktop equivalent of the web client's local storage. Writes go
// through a temp file and rename so a crash never leaves a half-written
// store behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileState struct {
	AppVersion string          `json:"app_version,omitempty"`
	Session    json.RawMessage `json:"session,omitempty"`
}

// NewFileStore creates a store at path, creating parent directories as
// needed. The file itself is created lazily on first write, mode 0600.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load(_ context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return nil, err
	}
	if len(state.Session) == 0 {
		return nil, ErrNoSession
	}
	return Decode(state.Session)
}

func (f *FileStore) Save(_ context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return err
	}
	state.Session = data
	return f.write(state)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return err
	}
	if len(state.Session) == 0 {
		return nil
	}
	state.Session = nil
	return f.write(state)
}

func (f *FileStore) AppVersion(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return "", err
	}
	return state.AppVersion, nil
}

func (f *FileStore) SetAppVersion(_ context.Context, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return err
	}
	state.AppVersion = version
	return f.write(state)
}

func (f *FileStore) Wipe(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (f *FileStore) read() (fileState, error) {
	var state fileState

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("%w: corrupt store file: %v", ErrStorageUnavailable, err)
	}
	return state, nil
}

func (f *FileStore) write(state fileState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

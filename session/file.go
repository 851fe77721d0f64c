package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

/*
FileStore keeps tokens in a JSON object on disk.

The file is re-read on every Get so that a sign-out done by another process
is seen at once. Writes go to a temporary file that is renamed over the old
one, so readers never see a half written file.
*/
type FileStore struct {
	mu   sync.Mutex
	path string

	// last is what this store last wrote, so its own writes can be told
	// apart from another process's.
	last  []byte
	wrote bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (map[string]string, error) {
	tokens := make(map[string]string)

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	if len(b) == 0 {
		return tokens, nil
	}

	if err := json.Unmarshal(b, &tokens); err != nil {
		return nil, fmt.Errorf("decoding session file %s: %w", f.path, err)
	}
	return tokens, nil
}

func (f *FileStore) save(tokens map[string]string) error {
	b, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return err
	}
	f.last, f.wrote = b, true
	return nil
}

// changedOnDisk reports whether the file no longer holds what this store
// last wrote. Before the first write every change counts.
func (f *FileStore) changedOnDisk() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.wrote {
		return true
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return true
	}
	return !bytes.Equal(b, f.last)
}

func (f *FileStore) Get(unitUID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.load()
	if err != nil {
		return "", false, err
	}
	t, ok := tokens[unitUID]
	return t, ok, nil
}

func (f *FileStore) Set(unitUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.load()
	if err != nil {
		return err
	}
	tokens[unitUID] = token
	return f.save(tokens)
}

func (f *FileStore) Delete(unitUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := tokens[unitUID]; !ok {
		return nil
	}
	delete(tokens, unitUID)
	return f.save(tokens)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(map[string]string{})
}

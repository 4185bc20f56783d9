package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File persists identities as a JSON object on disk so a command line client
// keeps its seat across restarts.
type File struct {
	path string
	mu   sync.Mutex
	ids  map[string]string
}

// OpenFile loads the identity file at path. A missing file is an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, ids: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.ids); err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	return f, nil
}

func (f *File) PlayerID(code string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[key(code)]
	return id, ok
}

func (f *File) SetPlayerID(code, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ids[key(code)] = playerID
	data, err := json.MarshalIndent(f.ids, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identities: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	// replace atomically
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".identity-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing identities: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing identity file: %w", err)
	}
	return nil
}

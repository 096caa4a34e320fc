package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	ledgerFileName = "session_backups.json"
	appDirName     = "sessionguard"
)

// FileStore keeps the ledger in a JSON file, written atomically.
type FileStore struct {
	mu  sync.Mutex
	dir string // directory containing session_backups.json
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore in dir. The directory is created on the
// first Add. Pass an empty string to use the default XDG state path.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{dir: dir}
}

// Path returns the full path to the ledger file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, ledgerFileName)
}

func (s *FileStore) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Add(rec Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return nil, err
	}
	next, err := add(list, rec)
	if err != nil {
		return nil, err
	}
	if err := s.save(next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup ledger: %w", err)
	}
	var list []Record
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing backup ledger: %w", err)
	}
	if len(list) > MaxRecords {
		list = list[:MaxRecords]
	}
	return list, nil
}

// save writes the ledger using a temp-file-then-rename pattern.
func (s *FileStore) save(list []Record) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".backups-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming ledger file: %w", err)
	}
	committed = true
	return nil
}

// DefaultDir returns ~/.local/state/sessionguard, respecting XDG_STATE_HOME
// if set.
func DefaultDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}

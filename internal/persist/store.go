package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

const tabFilePrefix = "tab-"

// FileStore persists tab records as one JSON file per tab. Records are
// ephemeral: the directory is cleared when the store is opened with reset.
type FileStore struct {
	dir string
	log pslog.Logger
	mu  sync.Mutex
}

// NewFileStore constructs a file store at the given directory.
func NewFileStore(dir string, reset bool) (*FileStore, error) {
	return NewFileStoreWithLogger(dir, reset, nil)
}

// NewFileStoreWithLogger constructs a file store with logging.
func NewFileStoreWithLogger(dir string, reset bool, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	s := &FileStore{dir: dir, log: logger}
	if reset {
		if err := s.clear(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads a tab record from disk.
func (s *FileStore) Load(_ context.Context, tabID schema.TabID) (schema.TabData, bool, error) {
	data, err := os.ReadFile(s.pathForTab(tabID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Trace("state load miss", "tab", int(tabID))
			}
			return schema.TabData{}, false, nil
		}
		s.warn("state load failed", tabID, err)
		return schema.TabData{}, false, err
	}
	var record schema.TabData
	if err := json.Unmarshal(data, &record); err != nil {
		s.warn("state load failed", tabID, err)
		return schema.TabData{}, false, err
	}
	return record, true, nil
}

// Save writes a tab record to disk atomically.
func (s *FileStore) Save(_ context.Context, tabID schema.TabID, record schema.TabData) error {
	data, err := json.Marshal(record)
	if err != nil {
		s.warn("state save failed", tabID, err)
		return err
	}
	path := s.pathForTab(tabID)
	tmp, err := os.CreateTemp(s.dir, "state-*.json")
	if err != nil {
		s.warn("state save failed", tabID, err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", tabID, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", tabID, err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", tabID, err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", tabID, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "tab", int(tabID))
	}
	return nil
}

// Delete removes a tab record.
func (s *FileStore) Delete(_ context.Context, tabID schema.TabID) error {
	if err := os.Remove(s.pathForTab(tabID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("state delete failed", tabID, err)
		return err
	}
	return nil
}

// Tabs lists the tabs with a record in ascending order.
func (s *FileStore) Tabs(_ context.Context) ([]schema.TabID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	tabs := make([]schema.TabID, 0, len(entries))
	for _, entry := range entries {
		if id, ok := parseTabFile(entry.Name()); ok && !entry.IsDir() {
			tabs = append(tabs, id)
		}
	}
	slices.Sort(tabs)
	return tabs, nil
}

func (s *FileStore) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	removed := 0
	for _, entry := range entries {
		if _, ok := parseTabFile(entry.Name()); !ok || entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		removed++
	}
	if s.log != nil && removed > 0 {
		s.log.Debug("state reset", "removed", removed)
	}
	return nil
}

func (s *FileStore) pathForTab(tabID schema.TabID) string {
	return filepath.Join(s.dir, tabFilePrefix+strconv.Itoa(int(tabID))+".json")
}

func (s *FileStore) warn(msg string, tabID schema.TabID, err error) {
	if s.log != nil {
		s.log.Warn(msg, "tab", int(tabID), "err", err)
	}
}

func parseTabFile(name string) (schema.TabID, bool) {
	if !strings.HasPrefix(name, tabFilePrefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, tabFilePrefix), ".json")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, false
	}
	return schema.TabID(id), true
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sdejongh/contentsync/pkg/models"
)

// localFileVersion is the on-disk format version of a Local store
const localFileVersion = 1

type localFile struct {
	Version int                    `json:"version"`
	Store   models.StoreID         `json:"store"`
	Records []models.ContentRecord `json:"records"`
}

// Local is a file-backed content store: a JSON snapshot of records that is
// rewritten after every successful write. It serves offline runs and
// fixtures; records behave exactly like the in-memory store.
type Local struct {
	mu   sync.Mutex
	path string
	mem  *Memory
}

// NewLocal opens the store file at path, creating an empty store if the
// file does not exist yet
func NewLocal(store models.StoreID, path string) (*Local, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	case err != nil && !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	l := &Local{path: absPath, mem: NewMemory(store)}
	if err == nil {
		if err := l.load(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Local) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	var f localFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	l.mem.Put(f.Records...)
	return nil
}

// save writes the snapshot atomically (temp file + rename)
func (l *Local) save() error {
	f := localFile{Version: localFileVersion, Store: l.mem.Store(), Records: l.mem.Records()}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// Path returns the absolute path of the store file
func (l *Local) Path() string {
	return l.path
}

// Store returns the side this store serves
func (l *Local) Store() models.StoreID {
	return l.mem.Store()
}

// FetchAll returns every record of the file
func (l *Local) FetchAll(ctx context.Context, opts FetchOptions) ([]models.ContentRecord, error) {
	return l.mem.FetchAll(ctx, opts)
}

// CreateRecord appends rec and persists the file
func (l *Local) CreateRecord(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	created, err := l.mem.CreateRecord(ctx, rec)
	if err != nil {
		return models.ContentRecord{}, err
	}
	if err := l.save(); err != nil {
		return models.ContentRecord{}, models.NewStoreError(l.Store(), "create", models.ErrRecordWriteFailed, err)
	}
	return created, nil
}

// UpdateRecord replaces the payload of nativeID and persists the file
func (l *Local) UpdateRecord(ctx context.Context, nativeID string, rec models.ContentRecord) (models.ContentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	updated, err := l.mem.UpdateRecord(ctx, nativeID, rec)
	if err != nil {
		return models.ContentRecord{}, err
	}
	if err := l.save(); err != nil {
		return models.ContentRecord{}, models.NewStoreError(l.Store(), "update", models.ErrRecordWriteFailed, err)
	}
	return updated, nil
}

// FindByIdentity locates a record by title and keyword
func (l *Local) FindByIdentity(ctx context.Context, title, keyword string) (Location, error) {
	return l.mem.FindByIdentity(ctx, title, keyword)
}

// Close is a no-op; every write is already persisted
func (l *Local) Close() error {
	return nil
}

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
)

// FaultFunc decides whether a write against the memory store fails.
// A non-nil return is used as the write error.
type FaultFunc func(op models.OpKind, rec models.ContentRecord) error

// Memory is an in-process content store. It keeps insertion order, hands out
// sequential native ids and counts every call so tests can assert on writes.
type Memory struct {
	mu      sync.Mutex
	store   models.StoreID
	records []models.ContentRecord
	nextID  int
	now     func() time.Time

	// FetchErr, when set, is returned by FetchAll
	FetchErr error
	// FindErr, when set, is returned by FindByIdentity
	FindErr error
	// Fault, when set, can fail individual writes
	Fault FaultFunc
	// StampWrites sets LastModified to the clock on every write, like a
	// store that tracks modification times itself
	StampWrites bool

	creates int
	updates int
	finds   int
	fetches int
}

// NewMemory creates an empty in-memory store for the given side
func NewMemory(store models.StoreID, records ...models.ContentRecord) *Memory {
	m := &Memory{store: store, now: time.Now}
	m.Put(records...)
	return m
}

// SetClock replaces the time source used for write stamps
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Put seeds records without counting them as writes
func (m *Memory) Put(records ...models.ContentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.SourceStore = m.store
		if r.SourceNativeID == "" {
			r.SourceNativeID = m.newID()
		}
		m.records = append(m.records, r)
	}
}

func (m *Memory) newID() string {
	for {
		m.nextID++
		id := fmt.Sprintf("%s-%d", m.store, m.nextID)
		if !m.hasID(id) {
			return id
		}
	}
}

func (m *Memory) hasID(id string) bool {
	for _, r := range m.records {
		if r.SourceNativeID == id {
			return true
		}
	}
	return false
}

// Store returns the side this store serves
func (m *Memory) Store() models.StoreID {
	return m.store
}

// FetchAll returns a copy of every stored record
func (m *Memory) FetchAll(ctx context.Context, opts FetchOptions) ([]models.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.FetchErr != nil {
		return nil, models.NewStoreError(m.store, "list", models.ErrStoreUnreachable, m.FetchErr)
	}

	out := make([]models.ContentRecord, len(m.records))
	copy(out, m.records)
	if opts.ApprovedOnly {
		out = FilterApproved(out)
	}
	return out, nil
}

// CreateRecord appends rec under a new native id
func (m *Memory) CreateRecord(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ContentRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.Fault != nil {
		if err := m.Fault(models.OpCreate, rec); err != nil {
			return models.ContentRecord{}, m.classify("create", err)
		}
	}

	rec.SourceStore = m.store
	rec.SourceNativeID = m.newID()
	if m.StampWrites {
		rec.LastModified = m.now().UTC()
		rec.LastModifiedSource = models.TimestampStore
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// UpdateRecord replaces the payload of the record with nativeID
func (m *Memory) UpdateRecord(ctx context.Context, nativeID string, rec models.ContentRecord) (models.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ContentRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.Fault != nil {
		if err := m.Fault(models.OpUpdate, rec); err != nil {
			return models.ContentRecord{}, m.classify("update", err)
		}
	}

	for i := range m.records {
		if m.records[i].SourceNativeID != nativeID {
			continue
		}
		updated := m.records[i].WithPayload(rec)
		if m.StampWrites {
			updated.LastModified = m.now().UTC()
			updated.LastModifiedSource = models.TimestampStore
		}
		m.records[i] = updated
		return updated, nil
	}
	return models.ContentRecord{}, models.NewStoreError(m.store, "update", models.ErrRecordWriteFailed,
		fmt.Errorf("%w: %s", models.ErrNotFound, nativeID))
}

// FindByIdentity scans the store for the first record with a matching identity
func (m *Memory) FindByIdentity(ctx context.Context, title, keyword string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.FindErr != nil {
		return Location{}, models.NewStoreError(m.store, "find", models.ErrStoreUnreachable, m.FindErr)
	}

	id := models.Identity(title, keyword)
	for _, r := range m.records {
		if r.Identity() == id {
			return Location{Found: true, NativeID: r.SourceNativeID}, nil
		}
	}
	return Location{}, nil
}

// classify wraps injected faults; unreachable faults keep their class
func (m *Memory) classify(op string, err error) error {
	if models.IsUnreachable(err) {
		return models.NewStoreError(m.store, op, models.ErrStoreUnreachable, err)
	}
	return models.NewStoreError(m.store, op, models.ErrRecordWriteFailed, err)
}

// Records returns a snapshot of the stored records
func (m *Memory) Records() []models.ContentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ContentRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Writes returns how many creates and updates were attempted
func (m *Memory) Writes() (creates, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.updates
}

// Finds returns how many find-by-identity lookups were made
func (m *Memory) Finds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finds
}

// Fetches returns how many FetchAll calls were made
func (m *Memory) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// ResetCounters zeroes the call counters
func (m *Memory) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates, m.updates, m.finds, m.fetches = 0, 0, 0, 0
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

package file

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errInjected = errors.New("injected failure")

// memRecords is an in-memory MetadataStore.
type memRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record

	createErr error
	findErr   error
	listErr   error
	deleteErr error
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[uuid.UUID]Record)}
}

func (m *memRecords) Create(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return Record{}, m.createErr
	}
	for id, existing := range m.records {
		if existing.OwnerID == rec.OwnerID && existing.FileName == rec.FileName {
			delete(m.records, id)
		}
	}
	rec.ID = uuid.New()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memRecords) FindByID(ctx context.Context, id uuid.UUID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return Record{}, m.findErr
	}
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrFileNotFound
	}
	return rec, nil
}

func (m *memRecords) FindByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return Record{}, m.findErr
	}
	for _, rec := range m.records {
		if rec.OwnerID == ownerID && rec.FileName == name {
			return rec, nil
		}
	}
	return Record{}, ErrFileNotFound
}

func (m *memRecords) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var list []Record
	for _, rec := range m.records {
		if rec.OwnerID == ownerID {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadTimestamp.Equal(list[j].UploadTimestamp) {
			return list[i].UploadTimestamp.After(list[j].UploadTimestamp)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (m *memRecords) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return ErrFileNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memRecords) ListStorageKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	keys := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		keys = append(keys, rec.StorageKey)
	}
	return keys, nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memObjects is an in-memory ObjectStore.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	putErr    error
	getErr    error
	deleteErr error
	listErr   error

	// putHook runs after a successful write, e.g. to cancel the caller's context.
	putHook func()
	// acceptShort keeps whatever was read even when the stream fails, like a store that commits partial parts.
	acceptShort bool
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil && !m.acceptShort {
		return 0, err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.types[key] = contentType
	m.mu.Unlock()
	if m.putHook != nil {
		m.putHook()
	}
	return int64(len(data)), nil
}

func (m *memObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Delete(ctx context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// steppingClock returns strictly increasing times so list ordering is deterministic.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

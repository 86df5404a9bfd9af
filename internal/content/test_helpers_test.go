package content

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	raw   []byte
	saves int
}

func (m *memoryStore) Load(context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return NewDocument(), nil
	}
	return DecodeDocument(m.raw, nil), nil
}

func (m *memoryStore) Save(_ context.Context, document Document) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = raw
	m.saves++
	return nil
}

func (m *memoryStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("link-%d", p.next), nil
}

type fixedIDProvider struct {
	ids   []string
	index int
}

func (p *fixedIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", fmt.Errorf("exhausted ids")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Date(2026, 10, 1, 7, 30, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Minute)
	return c.current
}

type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

func buildMemoryService(t fatalHelper) (*Service, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	service, err := NewService(ServiceConfig{
		Store:      store,
		Clock:      newSteppingClock().Now,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, store
}

func newMemoryService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	service, store := buildMemoryService(t)
	t.Cleanup(service.Close)
	return service, store
}

func newFileService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "content.json")
	store, err := NewFileStore(FileStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to construct file store: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Store:      store,
		Clock:      newSteppingClock().Now,
		IDProvider: NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	t.Cleanup(service.Close)
	return service, path
}

func mustCreateLink(t fatalHelper, service *Service, draft LinkDraft) Link {
	t.Helper()
	link, err := service.CreateLink(context.Background(), draft)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return link
}

func stringPointer(value string) *string {
	return &value
}

func categoryPointer(value Category) *Category {
	return &value
}

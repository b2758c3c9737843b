package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

// PNG is a byte string that sniffs as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

// ---- ArtifactRepository mock ----

var _ repository.ArtifactRepository = (*ArtifactRepository)(nil)

// ArtifactRepository is a test double for repository.ArtifactRepository.
type ArtifactRepository struct {
	mu sync.Mutex

	CreateGeneratedImageFn func(ctx context.Context, img *domain.GeneratedImage) error
	CreateVaultItemFn      func(ctx context.Context, item *domain.VaultItem) error

	GeneratedImages []*domain.GeneratedImage
	VaultItems      []*domain.VaultItem
}

func (m *ArtifactRepository) CreateGeneratedImage(ctx context.Context, img *domain.GeneratedImage) error {
	if m.CreateGeneratedImageFn != nil {
		if err := m.CreateGeneratedImageFn(ctx, img); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.GeneratedImages = append(m.GeneratedImages, img)
	m.mu.Unlock()
	return nil
}

func (m *ArtifactRepository) CreateVaultItem(ctx context.Context, item *domain.VaultItem) error {
	if m.CreateVaultItemFn != nil {
		if err := m.CreateVaultItemFn(ctx, item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.VaultItems = append(m.VaultItems, item)
	m.mu.Unlock()
	return nil
}

// ---- FolderRepository mock ----

var _ repository.FolderRepository = (*FolderRepository)(nil)

// FolderRepository is a test double for repository.FolderRepository.
// By default every folder resolves as owned by the caller.
type FolderRepository struct {
	ResolveForWriteFn func(ctx context.Context, folderID uuid.UUID, userID string) (*domain.VaultFolder, error)

	calls atomic.Int32
}

func (m *FolderRepository) ResolveForWrite(ctx context.Context, folderID uuid.UUID, userID string) (*domain.VaultFolder, error) {
	m.calls.Add(1)
	if m.ResolveForWriteFn != nil {
		return m.ResolveForWriteFn(ctx, folderID, userID)
	}
	return &domain.VaultFolder{ID: folderID, OwnerID: userID, Name: "Generated"}, nil
}

// Calls returns how many times ResolveForWrite was invoked.
func (m *FolderRepository) Calls() int {
	return int(m.calls.Load())
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID)
	}
	return nil
}

// ---- ObjectStore mock ----

var _ repository.ObjectStore = (*ObjectStore)(nil)

// ObjectStore is an in-memory test double for repository.ObjectStore.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	GetFn    func(ctx context.Context, key string) ([]byte, error)
	PutFn    func(ctx context.Context, key string, data []byte, contentType string) error
	DeleteFn func(ctx context.Context, key string) error

	Puts    []PutCall
	Deletes []string
}

type PutCall struct {
	Key         string
	ContentType string
	Size        int
}

// NewObjectStore creates a store preloaded with objects.
func NewObjectStore(objects map[string][]byte) *ObjectStore {
	if objects == nil {
		objects = make(map[string][]byte)
	}
	return &ObjectStore{objects: objects}
}

// Has reports whether key currently exists.
func (m *ObjectStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// DeleteCalls returns the recorded Delete keys.
func (m *ObjectStore) DeleteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deletes...)
}

// PutCalls returns the recorded Put calls.
func (m *ObjectStore) PutCalls() []PutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutCall(nil), m.Puts...)
}

func (m *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("mock: object %q not found", key)
	}
	return data, nil
}

func (m *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	m.Puts = append(m.Puts, PutCall{Key: key, ContentType: contentType, Size: len(data)})
	m.mu.Unlock()
	if m.PutFn != nil {
		if err := m.PutFn(ctx, key, data, contentType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func (m *ObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.Deletes = append(m.Deletes, key)
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *ObjectStore) URL(key string) string {
	return "https://cdn.test/" + key
}

// ---- Synthesizer mock ----

var _ repository.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a test double for repository.Synthesizer. By default every
// call succeeds with a URL image whose bytes are PNG.
type Synthesizer struct {
	mu sync.Mutex

	GenerateFn func(ctx context.Context, req *domain.SynthesisRequest) (*domain.SynthesizedImage, error)
	FetchFn    func(ctx context.Context, img *domain.SynthesizedImage) ([]byte, error)

	calls    atomic.Int32
	Requests []*domain.SynthesisRequest
}

// Calls returns how many Generate calls were made.
func (m *Synthesizer) Calls() int {
	return int(m.calls.Load())
}

func (m *Synthesizer) Generate(ctx context.Context, req *domain.SynthesisRequest) (*domain.SynthesizedImage, error) {
	n := m.calls.Add(1)
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return &domain.SynthesizedImage{URL: fmt.Sprintf("https://synth.test/%d.png", n), Size: "2048x2048"}, nil
}

func (m *Synthesizer) Fetch(ctx context.Context, img *domain.SynthesizedImage) ([]byte, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, img)
	}
	return PNG, nil
}

// ---- Notifier mock ----

var _ repository.Notifier = (*Notifier)(nil)

// Notifier records published events.
type Notifier struct {
	mu sync.Mutex

	PublishFn func(ctx context.Context, userID string, event *domain.Event) error

	events []RecordedEvent
}

type RecordedEvent struct {
	UserID string
	Event  *domain.Event
}

func (m *Notifier) Publish(ctx context.Context, userID string, event *domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, RecordedEvent{UserID: userID, Event: event})
	m.mu.Unlock()
	if m.PublishFn != nil {
		return m.PublishFn(ctx, userID, event)
	}
	return nil
}

// Events returns every recorded event.
func (m *Notifier) Events() []RecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedEvent(nil), m.events...)
}

// OfType returns the recorded events of type t.
func (m *Notifier) OfType(t domain.EventType) []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Event
	for _, e := range m.events {
		if e.Event.Type == t {
			out = append(out, e.Event)
		}
	}
	return out
}

package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock message publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []uuid.UUID
	PublishFn func(ctx context.Context, jobID uuid.UUID) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, jobID uuid.UUID) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, jobID)
	}
	m.mu.Lock()
	m.Published = append(m.Published, jobID)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

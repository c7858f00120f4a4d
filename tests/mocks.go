package tests

import (
	"context"
	"sync"

	"github.com/rankowl/rank-tracker/internal/domain/models"
)

type mockCollector struct {
	mu   sync.Mutex
	err  error
	runs int
}

func (m *mockCollector) Run(ctx context.Context, job *models.CollectionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return m.err
}

func (m *mockCollector) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Package models holds the model catalog and lists the models the API exposes.
package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/vendshop/aiadvent/internal/llm"
)

// Lister fetches models from the API.
type Lister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// Manager fetches and caches the list of available models.
type Manager struct {
	lister Lister

	mu     sync.Mutex
	cached []llm.ModelInfo
}

// NewManager creates a Manager backed by the given lister.
func NewManager(lister Lister) *Manager {
	return &Manager{lister: lister}
}

// List returns the available models, fetching from the API if not cached.
func (m *Manager) List(ctx context.Context) ([]llm.ModelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, nil
	}

	models, err := m.lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if models == nil {
		models = []llm.ModelInfo{}
	}
	m.cached = models
	return m.cached, nil
}

// IDs returns the ids of the available models.
func (m *Manager) IDs(ctx context.Context) ([]string, error) {
	models, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
	}
	return ids, nil
}

// Invalidate clears the cached model list.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// Has returns true if the given model ID is in the list of available models.
func (m *Manager) Has(ctx context.Context, modelID string) (bool, error) {
	models, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, model := range models {
		if model.ID == modelID {
			return true, nil
		}
	}
	return false, nil
}

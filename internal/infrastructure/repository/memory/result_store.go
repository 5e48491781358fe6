package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// ResultStore keeps document results in process memory. Results are cloned on
// the way in and out so callers never share state with the store.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*domain.DocumentResult
}

var (
	_ ports.ResultStore   = (*ResultStore)(nil)
	_ ports.ResultCounter = (*ResultStore)(nil)
)

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*domain.DocumentResult)}
}

func (s *ResultStore) Save(_ context.Context, result *domain.DocumentResult) error {
	if result == nil || result.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save document result", errors.New("document id is required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.DocumentID] = result.Clone()
	return nil
}

func (s *ResultStore) GetByID(_ context.Context, documentID string) (*domain.DocumentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document result", fmt.Errorf("id=%s", documentID))
	}
	return result.Clone(), nil
}

func (s *ResultStore) CountByStatus(_ context.Context) (map[domain.ProcessingStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ProcessingStatus]int)
	for _, result := range s.results {
		out[result.ProcessingStatus]++
	}
	return out, nil
}

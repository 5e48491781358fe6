package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func (s *DocumentService) GetByID(ctx context.Context, documentID string) (*domain.DocumentResult, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required"))
	}
	result, err := s.store.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return s.withOverdue(result), nil
}

// ListActions returns the document's actionable items matching filter. Pending
// items whose deadline has passed are reported as overdue.
func (s *DocumentService) ListActions(ctx context.Context, documentID string, filter domain.ActionFilter) ([]domain.ActionableItem, error) {
	result, err := s.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActionableItem, 0, len(result.ActionableItems))
	for _, item := range result.ActionableItems {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *DocumentService) withOverdue(result *domain.DocumentResult) *domain.DocumentResult {
	out := result.Clone()
	now := s.now()
	for i, item := range out.ActionableItems {
		if item.Overdue(now) {
			out.ActionableItems[i].Status = domain.ActionOverdue
		}
	}
	return out
}

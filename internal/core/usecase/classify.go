package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func (s *DocumentService) classify(ctx context.Context, text string) (domain.Classification, error) {
	out, err := s.model.Resolve(ctx, domain.ModelRequest{
		Operation: "classify",
		Prompt:    buildClassificationPrompt(text, s.catalog),
		Schema:    classificationSchema(),
		Params:    s.params,
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify document: %w", err)
	}
	return normalizeClassification(out, s.catalog, s.confidenceFloor), nil
}

// normalizeClassification clamps confidence to [0,1] and maps unknown types
// and low-confidence answers to other.
func normalizeClassification(out map[string]any, catalog *domain.Catalog, floor float64) domain.Classification {
	typ, _ := out["type"].(string)
	typ = strings.ToLower(strings.TrimSpace(typ))
	confidence := clamp01(toFloat(out["confidence"]))

	result := domain.Classification{Type: domain.DocumentType(typ), Confidence: confidence}
	if _, known := catalog.Lookup(result.Type); !known {
		result.Type = domain.TypeOther
	}
	if confidence < floor {
		result.Type = domain.TypeOther
	}
	return result
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func isParseError(err error) bool {
	var parseErr *domain.ResponseParseError
	return errors.As(err, &parseErr)
}

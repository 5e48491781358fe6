package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// extractMetadata issues one extraction call for schema. Every schema field is
// present in the returned map; fields the model could not find hold nil. On
// error the map still carries every field with a nil value.
func (s *DocumentService) extractMetadata(ctx context.Context, text string, schema domain.MetadataSchema, summary string) (map[string]domain.MetadataField, error) {
	fields := schema.Fields()
	out, err := s.model.Resolve(ctx, domain.ModelRequest{
		Operation: "extract",
		Prompt:    buildExtractionPrompt(text, schema, summary),
		Schema:    metadataSchema(schema),
		Params:    s.params,
	})
	if err != nil {
		out = nil
		err = fmt.Errorf("extract metadata: %w", err)
	}

	metadata := make(map[string]domain.MetadataField, len(fields))
	for _, spec := range fields {
		metadata[spec.Name] = domain.MetadataField{
			Name:        spec.Name,
			Value:       normalizeValue(out[spec.Name]),
			Description: spec.Description,
		}
	}
	return metadata, err
}

var absentMarkers = map[string]struct{}{
	"":          {},
	"null":      {},
	"none":      {},
	"n/a":       {},
	"na":        {},
	"not found": {},
	"unknown":   {},
}

// normalizeValue trims strings and maps placeholder answers to nil.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if _, absent := absentMarkers[strings.ToLower(trimmed)]; absent {
			return nil
		}
		return trimmed
	case []any:
		if len(val) == 0 {
			return nil
		}
		return val
	case map[string]any:
		if len(val) == 0 {
			return nil
		}
		return val
	default:
		return val
	}
}

// anyResolved reports whether at least one field counted for status carries a value.
func anyResolved(schema domain.MetadataSchema, metadata map[string]domain.MetadataField) bool {
	discovered, isDiscovered := schema.(domain.DiscoveredSchema)
	for name, field := range metadata {
		if isDiscovered && !discovered.IsBaseline(name) {
			continue
		}
		if field.Resolved() {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

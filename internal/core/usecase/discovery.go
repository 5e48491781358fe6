package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// resolveSchema picks the field set a document is extracted against. The
// returned schema is fixed for the rest of the pipeline. A non-nil error
// means discovery failed and the baseline schema was used instead.
func (s *DocumentService) resolveSchema(ctx context.Context, text string, cls domain.Classification) (domain.MetadataSchema, error) {
	if cls.Type != domain.TypeOther {
		if known, ok := s.catalog.Lookup(cls.Type); ok {
			return known, nil
		}
	}

	baseline := domain.BaselineFields()
	out, err := s.model.Resolve(ctx, domain.ModelRequest{
		Operation: "discover",
		Prompt:    buildDiscoveryPrompt(text, s.discoveryMaxFields),
		Schema:    discoverySchema(),
		Params:    s.params,
	})
	if err != nil {
		return domain.DiscoveredSchema{Baseline: baseline}, fmt.Errorf("discover schema: %w", err)
	}

	summary, _ := out["document_summary"].(string)
	return domain.DiscoveredSchema{
		Baseline: baseline,
		Proposed: proposedFields(out["suggested_fields"], baseline, s.discoveryMaxFields),
		Summary:  strings.TrimSpace(summary),
	}, nil
}

// proposedFields accepts either plain names or {name, description} objects.
func proposedFields(raw any, baseline []domain.FieldSpec, limit int) []domain.FieldSpec {
	items, _ := raw.([]any)
	seen := make(map[string]struct{}, len(baseline)+len(items))
	for _, f := range baseline {
		seen[f.Name] = struct{}{}
	}

	out := make([]domain.FieldSpec, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		var name, description string
		switch v := item.(type) {
		case string:
			name = v
		case map[string]any:
			name, _ = v["name"].(string)
			description, _ = v["description"].(string)
		}
		name = snakeCase(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(description) == "" {
			description = "The " + strings.ReplaceAll(name, "_", " ") + " of the document."
		}
		out = append(out, domain.FieldSpec{Name: name, Description: strings.TrimSpace(description), Kind: domain.FieldText})
	}
	return out
}

// snakeCase lowercases name and joins its words with underscores.
func snakeCase(name string) string {
	var b strings.Builder
	pendingSep := false
	prevLower := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && prevLower {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		default:
			pendingSep = true
			prevLower = false
		}
	}
	return b.String()
}

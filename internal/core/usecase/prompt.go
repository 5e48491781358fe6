package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	classificationSnippet = 2000
	discoverySnippet      = 3000
	extractionSnippet     = 4000
)

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func buildClassificationPrompt(text string, catalog *domain.Catalog) string {
	names := catalog.Names()
	typeNames := make([]string, 0, len(names))
	for _, name := range names {
		typeNames = append(typeNames, string(name))
	}

	var b strings.Builder
	b.WriteString("Classify the following document content into one of these specific types: ")
	b.WriteString(strings.Join(typeNames, ", "))
	b.WriteString(", or 'other' if it doesn't clearly fit any of the specific types.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- Choose a specific type only if the document clearly matches it\n")
	for _, schema := range catalog.Types {
		if len(schema.Keywords) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: typical wording includes %s\n", schema.Type, strings.Join(schema.Keywords, ", "))
	}
	b.WriteString("- Use 'other' for letters, memos, presentations, manuals, forms and general business documents\n")
	b.WriteString("- Confidence 0.8+ for clear matches, 0.5-0.7 for likely matches, below 0.5 when uncertain\n\n")
	b.WriteString("Return a JSON object with 'type' (string) and 'confidence' (number from 0.0 to 1.0). No markdown.\n\n")
	b.WriteString("Document Content:\n```\n")
	b.WriteString(snippet(text, classificationSnippet))
	b.WriteString("\n```")
	return b.String()
}

func buildDiscoveryPrompt(text string, maxFields int) string {
	return fmt.Sprintf(`Analyze this document and identify the %d most important pieces of information that should be extracted as metadata. Consider titles, authors, dates, key topics, purposes, important names, deadlines or other significant details.

Return a JSON object containing:
1. "suggested_fields": a list of objects with "name" (snake_case) and "description" (what the field holds)
2. "document_summary": a brief 1-2 sentence summary of what this document is about
No markdown.

Document Content:
`+"```\n%s\n```", maxFields, snippet(text, discoverySnippet))
}

func buildExtractionPrompt(text string, schema domain.MetadataSchema, summary string) string {
	var b strings.Builder
	docType := string(schema.DocumentType())
	fmt.Fprintf(&b, "Extract the following information from the %s document content provided.\n\n", docType)
	b.WriteString("Fields:\n")
	for _, field := range schema.Fields() {
		fmt.Fprintf(&b, "- %s: %s", field.Name, field.Description)
		if field.Kind == domain.FieldList {
			b.WriteString(" (a JSON array")
			if len(field.Items) > 0 {
				b.WriteString(" of objects with keys ")
				b.WriteString(strings.Join(sortedKeys(field.Items), ", "))
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReturn a JSON object with one key per field. If a field is not found or not applicable, include it with a null value. Format dates as YYYY-MM-DD. No markdown.\n\n")
	if strings.TrimSpace(summary) != "" {
		b.WriteString("Additional context: ")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	b.WriteString("Document Content:\n```\n")
	b.WriteString(snippet(text, extractionSnippet))
	b.WriteString("\n```")
	return b.String()
}

func classificationSchema() domain.ResponseSchema {
	return domain.ResponseSchema{
		"type":     "object",
		"required": []any{"type", "confidence"},
		"properties": map[string]any{
			"type":       map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number"},
		},
	}
}

func discoverySchema() domain.ResponseSchema {
	return domain.ResponseSchema{
		"type":     "object",
		"required": []any{"suggested_fields"},
		"properties": map[string]any{
			"suggested_fields": map[string]any{"type": "array"},
			"document_summary": map[string]any{"type": []any{"string", "null"}},
		},
	}
}

// metadataSchema describes the extraction response. Field values are left
// untyped so one oddly shaped value does not reject the whole response.
func metadataSchema(schema domain.MetadataSchema) domain.ResponseSchema {
	properties := make(map[string]any)
	for _, field := range schema.Fields() {
		prop := map[string]any{"description": field.Description}
		if field.Kind == domain.FieldList && len(field.Items) > 0 {
			itemProps := make(map[string]any, len(field.Items))
			for name, desc := range field.Items {
				itemProps[name] = map[string]any{"description": desc}
			}
			prop["items"] = map[string]any{"properties": itemProps}
		}
		properties[field.Name] = prop
	}
	return domain.ResponseSchema{
		"type":       "object",
		"properties": properties,
	}
}

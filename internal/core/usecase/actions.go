package usecase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const maxActionTextLen = 100

var (
	deadlineFields  = []string{"deadline", "due_date"}
	intentFields    = []string{"document_purpose", "purpose", "subject", "executive_summary"}
	titleFields     = []string{"title", "document_title"}
	provenanceField = "author"
)

var listLabels = map[string]string{
	"line_items":  "line item",
	"key_terms":   "contract term",
	"key_points":  "key point",
	"key_metrics": "key metric",
	"parties":     "party",
}

var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"1/2/2006",
}

// ActionDeriver maps extracted metadata to actionable items. Derive is
// deterministic in everything but item ids.
type ActionDeriver struct {
	newID func() string
}

func NewActionDeriver(newID func() string) *ActionDeriver {
	if newID == nil {
		newID = uuid.NewString
	}
	return &ActionDeriver{newID: newID}
}

func (d *ActionDeriver) Derive(result *domain.DocumentResult) []domain.ActionableItem {
	if result == nil || len(result.Metadata) == 0 {
		return []domain.ActionableItem{}
	}
	md := result.Metadata
	items := make([]domain.ActionableItem, 0)
	used := make(map[string]bool)

	add := func(description string, priority domain.Priority, status domain.ActionStatus, deadline *string, sources ...string) {
		items = append(items, domain.ActionableItem{
			ItemID:       d.newID(),
			Description:  description,
			Status:       status,
			Deadline:     deadline,
			Priority:     priority,
			SourceFields: sources,
		})
	}

	// Payment: amount and due date become one consolidated item.
	if amount, ok := textValue(md, "amount"); ok {
		if due, ok := textValue(md, "due_date"); ok {
			vendor, hasVendor := textValue(md, "vendor")
			if !hasVendor {
				vendor = "unknown vendor"
			}
			add(fmt.Sprintf("Pay %s to %s by %s", amount, vendor, due),
				domain.PriorityHigh, domain.ActionPending, normalizeDate(due), "amount", "due_date")
			used["amount"], used["due_date"] = true, true
		}
	}

	for _, name := range deadlineFields {
		if used[name] {
			continue
		}
		if date, ok := textValue(md, name); ok {
			add(fmt.Sprintf("Complete by %s", date), domain.PriorityHigh, domain.ActionPending, normalizeDate(date), name)
			used[name] = true
		}
	}

	if date, ok := textValue(md, "termination_date"); ok {
		add(fmt.Sprintf("Review contract before termination on %s", date),
			domain.PriorityHigh, domain.ActionPending, normalizeDate(date), "termination_date")
	}

	if date, ok := textValue(md, "effective_date"); ok {
		add(fmt.Sprintf("Acknowledge contract effective on %s", date),
			domain.PriorityLow, domain.ActionCompleted, nil, "effective_date")
	}

	for _, name := range sortedKeys(md) {
		elements, ok := md[name].Value.([]any)
		if !ok {
			continue
		}
		label := listLabel(name)
		for _, element := range elements {
			text := elementText(element)
			if text == "" {
				continue
			}
			add(fmt.Sprintf("Review %s: %s", label, truncate(text, maxActionTextLen)),
				domain.PriorityMedium, domain.ActionPending, nil, name)
		}
	}

	for _, name := range titleFields {
		if title, ok := textValue(md, name); ok {
			add(fmt.Sprintf("Review and process document: %s", truncate(title, maxActionTextLen)),
				domain.PriorityMedium, domain.ActionPending, nil, name)
			break
		}
	}

	for _, name := range intentFields {
		if intent, ok := textValue(md, name); ok {
			add(fmt.Sprintf("Address document purpose: %s", truncate(intent, maxActionTextLen)),
				domain.PriorityMedium, domain.ActionPending, nil, name)
		}
	}

	if author, ok := textValue(md, provenanceField); ok {
		add(fmt.Sprintf("Follow up with %s", author), domain.PriorityLow, domain.ActionPending, nil, provenanceField)
	}

	return items
}

// textValue renders a scalar metadata value. Lists and absent values report false.
func textValue(md map[string]domain.MetadataField, name string) (string, bool) {
	field, ok := md[name]
	if !ok || !field.Resolved() {
		return "", false
	}
	if _, isList := field.Value.([]any); isList {
		return "", false
	}
	text := formatValue(field.Value)
	return text, text != ""
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// elementText prefers the description of object elements such as line items.
func elementText(element any) string {
	if obj, ok := element.(map[string]any); ok {
		for _, key := range []string{"description", "name", "title", "term"} {
			if text := formatValue(obj[key]); text != "" {
				return text
			}
		}
	}
	return formatValue(element)
}

func listLabel(name string) string {
	if label, ok := listLabels[name]; ok {
		return label
	}
	return strings.ReplaceAll(name, "_", " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// normalizeDate returns the date as YYYY-MM-DD when it can be parsed and the
// original text otherwise.
func normalizeDate(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			formatted := t.Format(domain.DateLayout)
			return &formatted
		}
	}
	return &raw
}

package usecase

import (
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func metadataOf(values map[string]any) *domain.DocumentResult {
	md := make(map[string]domain.MetadataField, len(values))
	for name, value := range values {
		md[name] = domain.MetadataField{Name: name, Value: value}
	}
	return &domain.DocumentResult{Metadata: md}
}

func stripIDs(items []domain.ActionableItem) []domain.ActionableItem {
	out := make([]domain.ActionableItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
		out[i].ItemID = ""
	}
	return out
}

func TestDeriveIsDeterministicExceptIDs(t *testing.T) {
	result := metadataOf(map[string]any{
		"vendor":     "Acme Corp",
		"amount":     "$1500.00",
		"due_date":   "July 15, 2024",
		"line_items": []any{map[string]any{"description": "Widgets", "quantity": 3.0}, "Shipping"},
		"title":      "Invoice 42",
	})
	first := NewActionDeriver(sequentialIDs()).Derive(result)
	second := NewActionDeriver(nil).Derive(result)

	if !reflect.DeepEqual(stripIDs(first), stripIDs(second)) {
		t.Fatalf("derivation differs between runs:\n%+v\n%+v", first, second)
	}
	if first[0].ItemID == second[0].ItemID {
		t.Fatalf("expected fresh ids per run")
	}
}

func TestDeriveRules(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]any
		want     []string
		priority []domain.Priority
	}{
		{
			name:     "payment consolidates amount and due date",
			values:   map[string]any{"amount": 99.5, "due_date": "2024-03-01"},
			want:     []string{"Pay 99.5 to unknown vendor by 2024-03-01"},
			priority: []domain.Priority{domain.PriorityHigh},
		},
		{
			name:     "standalone deadline",
			values:   map[string]any{"deadline": "2024-05-05"},
			want:     []string{"Complete by 2024-05-05"},
			priority: []domain.Priority{domain.PriorityHigh},
		},
		{
			name:   "contract dates",
			values: map[string]any{"termination_date": "2025-01-01", "effective_date": "2024-01-01"},
			want: []string{
				"Review contract before termination on 2025-01-01",
				"Acknowledge contract effective on 2024-01-01",
			},
			priority: []domain.Priority{domain.PriorityHigh, domain.PriorityLow},
		},
		{
			name:     "list elements in field order",
			values:   map[string]any{"parties": []any{"Acme", "Globex"}, "key_terms": []any{map[string]any{"term": "Net 30"}}},
			want:     []string{"Review contract term: Net 30", "Review party: Acme", "Review party: Globex"},
			priority: []domain.Priority{domain.PriorityMedium, domain.PriorityMedium, domain.PriorityMedium},
		},
		{
			name:     "title intent and author",
			values:   map[string]any{"title": "Q2 Report", "executive_summary": "Revenue grew.", "author": "Finance"},
			want:     []string{"Review and process document: Q2 Report", "Address document purpose: Revenue grew.", "Follow up with Finance"},
			priority: []domain.Priority{domain.PriorityMedium, domain.PriorityMedium, domain.PriorityLow},
		},
		{
			name:   "null values produce nothing",
			values: map[string]any{"title": nil, "amount": nil, "due_date": nil, "line_items": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := NewActionDeriver(sequentialIDs()).Derive(metadataOf(tt.values))
			if len(items) != len(tt.want) {
				t.Fatalf("got %d items, want %d: %+v", len(items), len(tt.want), items)
			}
			for i, item := range items {
				if item.Description != tt.want[i] {
					t.Fatalf("item %d description = %q, want %q", i, item.Description, tt.want[i])
				}
				if item.Priority != tt.priority[i] {
					t.Fatalf("item %d priority = %s, want %s", i, item.Priority, tt.priority[i])
				}
				if len(item.SourceFields) == 0 {
					t.Fatalf("item %d has no source fields", i)
				}
			}
		})
	}
}

func TestDeriveNormalizesDeadlines(t *testing.T) {
	items := NewActionDeriver(sequentialIDs()).Derive(metadataOf(map[string]any{
		"amount":   "100 EUR",
		"due_date": "March 3, 2024",
		"deadline": "end of quarter",
	}))
	if len(items) != 2 {
		t.Fatalf("expected payment and deadline items, got %+v", items)
	}
	if items[0].Deadline == nil || *items[0].Deadline != "2024-03-03" {
		t.Fatalf("expected normalized deadline, got %v", items[0].Deadline)
	}
	if items[1].Deadline == nil || *items[1].Deadline != "end of quarter" {
		t.Fatalf("expected unparseable deadline kept verbatim, got %v", items[1].Deadline)
	}
	if items[0].Status != domain.ActionPending {
		t.Fatalf("expected pending payment item, got %s", items[0].Status)
	}
}

func TestDeriveTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 150)
	items := NewActionDeriver(sequentialIDs()).Derive(metadataOf(map[string]any{"subject": long}))
	if len(items) != 1 {
		t.Fatalf("expected one item, got %+v", items)
	}
	want := "Address document purpose: " + strings.Repeat("x", 100) + "..."
	if items[0].Description != want {
		t.Fatalf("unexpected description length %d", len(items[0].Description))
	}
}

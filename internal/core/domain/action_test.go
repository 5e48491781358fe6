package domain

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestActionFilterMatches(t *testing.T) {
	item := ActionableItem{
		Status:   ActionPending,
		Priority: PriorityHigh,
		Deadline: strPtr("2024-07-15"),
	}

	cases := []struct {
		name   string
		filter ActionFilter
		want   bool
	}{
		{name: "empty filter", filter: ActionFilter{}, want: true},
		{name: "status match", filter: ActionFilter{Status: ActionPending}, want: true},
		{name: "status mismatch", filter: ActionFilter{Status: ActionCompleted}, want: false},
		{name: "priority mismatch", filter: ActionFilter{Priority: PriorityLow}, want: false},
		{name: "deadline match", filter: ActionFilter{Deadline: "2024-07-15"}, want: true},
		{name: "deadline mismatch", filter: ActionFilter{Deadline: "2024-07-16"}, want: false},
		{name: "deadline before", filter: ActionFilter{DeadlineBefore: "2024-08-01"}, want: true},
		{name: "deadline after bound", filter: ActionFilter{DeadlineBefore: "2024-07-01"}, want: false},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(item); got != tc.want {
			t.Fatalf("%s: Matches() = %v, want %v", tc.name, got, tc.want)
		}
	}

	if (ActionFilter{Deadline: "2024-07-15"}).Matches(ActionableItem{Status: ActionPending}) {
		t.Fatalf("items without deadline must not match a deadline filter")
	}
}

func TestActionableItemOverdue(t *testing.T) {
	now := time.Date(2024, 7, 20, 10, 0, 0, 0, time.UTC)
	pending := ActionableItem{Status: ActionPending, Deadline: strPtr("2024-07-15")}
	if !pending.Overdue(now) {
		t.Fatalf("expected pending item past deadline to be overdue")
	}
	done := ActionableItem{Status: ActionCompleted, Deadline: strPtr("2024-07-15")}
	if done.Overdue(now) {
		t.Fatalf("completed items are never overdue")
	}
	today := ActionableItem{Status: ActionPending, Deadline: strPtr("2024-07-20")}
	if today.Overdue(now) {
		t.Fatalf("items due today are not overdue yet")
	}
}

func TestDiscoveredSchemaFieldsDeduplicates(t *testing.T) {
	schema := DiscoveredSchema{
		Baseline: BaselineFields(),
		Proposed: []FieldSpec{{Name: "author"}, {Name: "meeting_date"}},
	}
	fields := schema.Fields()
	if len(fields) != 4 {
		t.Fatalf("expected 4 fields, got %d: %+v", len(fields), fields)
	}
	if fields[3].Name != "meeting_date" {
		t.Fatalf("unexpected field order: %+v", fields)
	}
	if !schema.IsBaseline("title") || schema.IsBaseline("meeting_date") {
		t.Fatalf("baseline membership is wrong")
	}
}

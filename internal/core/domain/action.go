package domain

import "time"

type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionOverdue   ActionStatus = "overdue"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DateLayout is the canonical deadline format.
const DateLayout = "2006-01-02"

type ActionableItem struct {
	ItemID       string       `json:"item_id"`
	Description  string       `json:"description"`
	Status       ActionStatus `json:"status"`
	Deadline     *string      `json:"deadline"`
	Priority     Priority     `json:"priority"`
	SourceFields []string     `json:"source_fields"`
}

func (a ActionableItem) Clone() ActionableItem {
	out := a
	if a.Deadline != nil {
		d := *a.Deadline
		out.Deadline = &d
	}
	out.SourceFields = append([]string(nil), a.SourceFields...)
	return out
}

// ActionFilter selects actionable items; zero-valued fields match everything.
type ActionFilter struct {
	Status         ActionStatus
	Priority       Priority
	Deadline       string
	DeadlineBefore string
}

func (f ActionFilter) Matches(item ActionableItem) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.Priority != "" && item.Priority != f.Priority {
		return false
	}
	if f.Deadline != "" && (item.Deadline == nil || *item.Deadline != f.Deadline) {
		return false
	}
	if f.DeadlineBefore != "" {
		if item.Deadline == nil {
			return false
		}
		// Both sides are YYYY-MM-DD so lexical order is chronological.
		if *item.Deadline > f.DeadlineBefore {
			return false
		}
	}
	return true
}

// Overdue reports whether a pending item's deadline lies before today.
func (a ActionableItem) Overdue(now time.Time) bool {
	if a.Status != ActionPending || a.Deadline == nil {
		return false
	}
	deadline, err := time.Parse(DateLayout, *a.Deadline)
	if err != nil {
		return false
	}
	today := now.UTC().Format(DateLayout)
	return deadline.Format(DateLayout) < today
}

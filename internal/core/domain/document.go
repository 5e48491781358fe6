package domain

import "time"

type DocumentType string

// TypeOther is the catch-all type for documents outside the known catalog.
const TypeOther DocumentType = "other"

type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusPartial ProcessingStatus = "partial"
	StatusFailed  ProcessingStatus = "failed"
)

// Stage is the position of a document in the processing pipeline.
type Stage string

const (
	StageReceived          Stage = "received"
	StageTextExtracted     Stage = "text_extracted"
	StageClassified        Stage = "classified"
	StageMetadataExtracted Stage = "metadata_extracted"
	StageActionsDerived    Stage = "actions_derived"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

type Classification struct {
	Type       DocumentType `json:"type"`
	Confidence float64      `json:"confidence"`
}

type MetadataField struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// Resolved reports whether the model produced a usable value for the field.
func (f MetadataField) Resolved() bool {
	switch v := f.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

type DocumentResult struct {
	DocumentID       string                   `json:"document_id"`
	Filename         string                   `json:"filename"`
	Classification   Classification           `json:"classification"`
	SchemaVariant    string                   `json:"schema_variant,omitempty"`
	SchemaVersion    string                   `json:"schema_version,omitempty"`
	Summary          string                   `json:"summary,omitempty"`
	Metadata         map[string]MetadataField `json:"metadata"`
	ActionableItems  []ActionableItem         `json:"actionable_items"`
	ProcessingStatus ProcessingStatus         `json:"processing_status"`
	ErrorMessage     *string                  `json:"error_message"`
	CreatedAt        time.Time                `json:"created_at"`
}

// Clone returns a copy that shares no mutable state with r.
func (r *DocumentResult) Clone() *DocumentResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]MetadataField, len(r.Metadata))
		for name, field := range r.Metadata {
			field.Value = cloneValue(field.Value)
			out.Metadata[name] = field
		}
	}
	if r.ActionableItems != nil {
		out.ActionableItems = make([]ActionableItem, len(r.ActionableItems))
		for i, item := range r.ActionableItems {
			out.ActionableItems[i] = item.Clone()
		}
	}
	if r.ErrorMessage != nil {
		msg := *r.ErrorMessage
		out.ErrorMessage = &msg
	}
	return &out
}

// cloneValue deep-copies the JSON-shaped values the model decoder produces.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = cloneValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = cloneValue(elem)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// AnalyzeJob is the queued unit of work for asynchronous processing.
type AnalyzeJob struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

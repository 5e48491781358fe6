package domain

// FieldKind hints the expected JSON shape of a metadata field.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
	FieldList   FieldKind = "list"
)

type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Kind        FieldKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Items describes list elements as property name -> description.
	Items map[string]string `json:"items,omitempty" yaml:"items,omitempty"`
}

const (
	SchemaVariantKnown      = "known"
	SchemaVariantDiscovered = "discovered"
)

// MetadataSchema is the field set a document is extracted against. It is
// either a KnownTypeSchema or a DiscoveredSchema and never changes once chosen.
type MetadataSchema interface {
	DocumentType() DocumentType
	Variant() string
	Version() string
	Fields() []FieldSpec
}

type KnownTypeSchema struct {
	Type          DocumentType
	SchemaVersion string
	// Keywords are hints listed in the classification prompt.
	Keywords   []string
	FieldSpecs []FieldSpec
}

func (s KnownTypeSchema) DocumentType() DocumentType { return s.Type }
func (s KnownTypeSchema) Variant() string            { return SchemaVariantKnown }
func (s KnownTypeSchema) Version() string            { return s.SchemaVersion }

func (s KnownTypeSchema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.FieldSpecs...)
}

// DiscoveredSchema is the baseline field set merged with the fields the model
// proposed for one specific document.
type DiscoveredSchema struct {
	Baseline []FieldSpec
	Proposed []FieldSpec
	Summary  string
}

func (s DiscoveredSchema) DocumentType() DocumentType { return TypeOther }
func (s DiscoveredSchema) Variant() string            { return SchemaVariantDiscovered }
func (s DiscoveredSchema) Version() string            { return "" }

func (s DiscoveredSchema) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.Baseline)+len(s.Proposed))
	seen := make(map[string]struct{}, len(s.Baseline)+len(s.Proposed))
	for _, group := range [][]FieldSpec{s.Baseline, s.Proposed} {
		for _, f := range group {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// IsBaseline reports whether name belongs to the baseline field set.
func (s DiscoveredSchema) IsBaseline(name string) bool {
	for _, f := range s.Baseline {
		if f.Name == name {
			return true
		}
	}
	return false
}

// BaselineFields are attempted for every document of type other.
func BaselineFields() []FieldSpec {
	return []FieldSpec{
		{Name: "title", Description: "The title or main heading of the document.", Kind: FieldText},
		{Name: "author", Description: "The person or organization who created or authored the document.", Kind: FieldText},
		{Name: "date", Description: "The date when the document was created or issued.", Kind: FieldText},
	}
}

// Catalog is the closed set of known document types and their schemas.
type Catalog struct {
	Types []KnownTypeSchema
}

func (c *Catalog) Lookup(t DocumentType) (KnownTypeSchema, bool) {
	if c == nil {
		return KnownTypeSchema{}, false
	}
	for _, s := range c.Types {
		if s.Type == t {
			return s, true
		}
	}
	return KnownTypeSchema{}, false
}

// Names returns the known type names in catalog order.
func (c *Catalog) Names() []DocumentType {
	if c == nil {
		return nil
	}
	out := make([]DocumentType, 0, len(c.Types))
	for _, s := range c.Types {
		out = append(out, s.Type)
	}
	return out
}

// Package catalog loads the closed set of known document types and the
// metadata fields extracted for each of them.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type file struct {
	Types []typeEntry `yaml:"types"`
}

type typeEntry struct {
	Type     string             `yaml:"type"`
	Version  string             `yaml:"version"`
	Keywords []string           `yaml:"keywords"`
	Fields   []domain.FieldSpec `yaml:"fields"`
}

// Default returns the built-in catalog.
func Default() (*domain.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the built-in catalog when path is empty.
func Load(path string) (*domain.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document types %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*domain.Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse document types: %w", err)
	}
	if len(f.Types) == 0 {
		return nil, fmt.Errorf("document types: at least one type is required")
	}

	out := &domain.Catalog{Types: make([]domain.KnownTypeSchema, 0, len(f.Types))}
	seenTypes := make(map[string]struct{}, len(f.Types))
	for i, entry := range f.Types {
		name := strings.ToLower(strings.TrimSpace(entry.Type))
		if name == "" {
			return nil, fmt.Errorf("document types[%d]: type is required", i)
		}
		if name == string(domain.TypeOther) {
			return nil, fmt.Errorf("document types[%d]: %q is reserved", i, name)
		}
		if _, dup := seenTypes[name]; dup {
			return nil, fmt.Errorf("document types[%d]: duplicate type %q", i, name)
		}
		seenTypes[name] = struct{}{}
		if len(entry.Fields) == 0 {
			return nil, fmt.Errorf("document type %q: at least one field is required", name)
		}

		fields := make([]domain.FieldSpec, 0, len(entry.Fields))
		seenFields := make(map[string]struct{}, len(entry.Fields))
		for _, field := range entry.Fields {
			if !fieldNamePattern.MatchString(field.Name) {
				return nil, fmt.Errorf("document type %q: invalid field name %q", name, field.Name)
			}
			if _, dup := seenFields[field.Name]; dup {
				return nil, fmt.Errorf("document type %q: duplicate field %q", name, field.Name)
			}
			seenFields[field.Name] = struct{}{}
			if field.Kind == "" {
				field.Kind = domain.FieldText
			}
			fields = append(fields, field)
		}

		version := strings.TrimSpace(entry.Version)
		if version == "" {
			version = "1"
		}
		out.Types = append(out.Types, domain.KnownTypeSchema{
			Type:          domain.DocumentType(name),
			SchemaVersion: version,
			Keywords:      entry.Keywords,
			FieldSpecs:    fields,
		})
	}
	return out, nil
}

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	names := c.Names()
	if len(names) != 3 || names[0] != "invoice" || names[1] != "contract" || names[2] != "report" {
		t.Fatalf("unexpected catalog order: %v", names)
	}

	invoice, ok := c.Lookup("invoice")
	if !ok {
		t.Fatalf("invoice missing from catalog")
	}
	var fieldNames []string
	for _, f := range invoice.Fields() {
		fieldNames = append(fieldNames, f.Name)
	}
	if strings.Join(fieldNames, ",") != "vendor,amount,due_date,line_items" {
		t.Fatalf("unexpected invoice fields: %v", fieldNames)
	}
	lineItems := invoice.FieldSpecs[3]
	if lineItems.Kind != domain.FieldList || lineItems.Items["quantity"] == "" {
		t.Fatalf("expected list kind with item descriptions, got %+v", lineItems)
	}
	if invoice.FieldSpecs[0].Kind != domain.FieldText {
		t.Fatalf("expected default kind text, got %q", invoice.FieldSpecs[0].Kind)
	}
	if _, ok := c.Lookup(domain.TypeOther); ok {
		t.Fatalf("other must not be a catalog entry")
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := map[string]string{
		"empty":        `types: []`,
		"reserved":     "types:\n  - type: other\n    fields:\n      - name: title\n",
		"duplicate":    "types:\n  - type: memo\n    fields:\n      - name: a\n  - type: memo\n    fields:\n      - name: b\n",
		"no fields":    "types:\n  - type: memo\n",
		"bad name":     "types:\n  - type: memo\n    fields:\n      - name: Due Date\n",
		"dup field":    "types:\n  - type: memo\n    fields:\n      - name: a\n      - name: a\n",
		"invalid yaml": "types: [",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(input)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	content := "types:\n  - type: Memo\n    version: \"2\"\n    fields:\n      - name: recipient\n        description: Who the memo is addressed to.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	memo, ok := c.Lookup("memo")
	if !ok || memo.Version() != "2" || len(memo.Fields()) != 1 {
		t.Fatalf("unexpected memo schema: %+v", memo)
	}

	if _, err := Load(""); err != nil {
		t.Fatalf("Load(\"\") should fall back to default: %v", err)
	}
}

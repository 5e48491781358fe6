package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type schemaCache struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks value against the response schema descriptor.
func (c *schemaCache) Validate(schema domain.ResponseSchema, value map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := c.compile(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(toJSONValue(value)); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func (c *schemaCache) compile(schema domain.ResponseSchema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(b)

	c.mu.Lock()
	defer c.mu.Unlock()
	if compiled, ok := c.compiled[key]; ok {
		return compiled, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	c.compiled[key] = compiled
	return compiled, nil
}

// toJSONValue converts the decoded object to the generic form the validator
// expects, where numbers are json.Number.
func toJSONValue(value map[string]any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return value
	}
	return out
}

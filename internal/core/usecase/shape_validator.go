package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// ShapeValidator checks record data against the JSON schema of its shape.
// Compiled schemas are cached per shape name and recompiled when the raw
// schema document changes.
type ShapeValidator struct {
	cache sync.Map // key: shape name → compiledShape
}

type compiledShape struct {
	raw    string
	schema *santhosh.Schema
}

func NewShapeValidator() *ShapeValidator {
	return &ShapeValidator{}
}

// Validate returns nil when the shape has no schema. Violations are
// reported as *domain.ErrShapeViolation.
func (v *ShapeValidator) Validate(shape domain.Shape, data json.RawMessage) error {
	if len(shape.Schema) == 0 {
		return nil
	}
	sch, err := v.compiled(shape)
	if err != nil {
		return fmt.Errorf("compile shape %s: %w", shape.Name, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.ErrShapeViolation{Type: shape.Name, Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrShapeViolation{Type: shape.Name, Errors: []string{err.Error()}}
	}
	return nil
}

// Compile reports whether the shape's schema is a usable JSON Schema.
func (v *ShapeValidator) Compile(shape domain.Shape) error {
	if len(shape.Schema) == 0 {
		return nil
	}
	_, err := v.compiled(shape)
	return err
}

func (v *ShapeValidator) compiled(shape domain.Shape) (*santhosh.Schema, error) {
	raw := string(shape.Schema)
	if cached, ok := v.cache.Load(shape.Name); ok {
		if cs := cached.(compiledShape); cs.raw == raw {
			return cs.schema, nil
		}
	}
	sch, err := compileSchema(shape.Schema)
	if err != nil {
		return nil, err
	}
	v.cache.Store(shape.Name, compiledShape{raw: raw, schema: sch})
	return sch, nil
}

func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("shape.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("shape.json")
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/swaggest/jsonschema-go"
)

// TypedHandler is a tool body operating on decoded arguments.
type TypedHandler[T any] func(ctx context.Context, input T) (string, error)

// TypedTool adapts a TypedHandler to Tool. The parameter schema is reflected
// from T; handler and decoding errors are rendered as "Error: ..." text so a
// failing tool never aborts a response.
type TypedTool[T any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	handler     TypedHandler[T]
	validate    *validator.Validate
}

var inputValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}()

// NewTypedTool reflects T's schema. T must be a struct.
func NewTypedTool[T any](name, description string, handler TypedHandler[T]) (*TypedTool[T], error) {
	var input T
	if k := reflect.TypeOf(input); k == nil || k.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool %s: input type must be a struct", name)
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("tool %s: generate schema: %w", name, err)
	}

	return &TypedTool[T]{
		name:        name,
		description: description,
		schema:      &schema,
		handler:     handler,
		validate:    inputValidator,
	}, nil
}

// MustNewTypedTool is NewTypedTool for package-level wiring; it panics on error.
func MustNewTypedTool[T any](name, description string, handler TypedHandler[T]) *TypedTool[T] {
	t, err := NewTypedTool(name, description, handler)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *TypedTool[T]) Name() string                   { return t.name }
func (t *TypedTool[T]) Description() string            { return t.description }
func (t *TypedTool[T]) Parameters() *jsonschema.Schema { return t.schema }

// Run decodes args into T, validates it and calls the handler.
func (t *TypedTool[T]) Run(ctx context.Context, args map[string]any) (string, error) {
	var input T
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}
	if err := t.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Sprintf("Error: invalid arguments: %s is %s", verrs[0].Field(), verrs[0].Tag()), nil
		}
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}

	out, err := t.handler(ctx, input)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return out, nil
}

package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/llmutils"
	"github.com/effective-security/mcpbridge/schema"
)

// Typed wraps a plain Go function as an ITool. The parameters definition is
// reflected from the input type, so locally-defined tools carry the same
// schema surface as remotely-discovered ones.
type Typed[I any, O any] struct {
	name        string
	description string
	funcParams  any
	fn          func(context.Context, *I) (*O, error)
}

var _ Tool[struct{}, struct{}] = (*Typed[struct{}, struct{}])(nil)

// NewTyped creates a tool from fn, deriving the parameters schema from I.
func NewTyped[I any, O any](name, description string, fn func(context.Context, *I) (*O, error)) (*Typed[I, O], error) {
	var def I
	sc, err := schema.New(reflect.TypeOf(def))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Typed[I, O]{
		name:        name,
		description: description,
		funcParams:  sc.Parameters,
		fn:          fn,
	}, nil
}

func (t *Typed[I, O]) Name() string {
	return t.name
}

func (t *Typed[I, O]) Description() string {
	return t.description
}

func (t *Typed[I, O]) Parameters() any {
	return t.funcParams
}

func (t *Typed[I, O]) Run(ctx context.Context, req *I) (*O, error) {
	return t.fn(ctx, req)
}

func (t *Typed[I, O]) Call(ctx context.Context, input string) (string, error) {
	var req I
	if input != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
			return "", errors.WithStack(ErrFailedUnmarshalInput)
		}
	}
	res, err := t.fn(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSON(res), nil
}

package schema

import (
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
)

// Validate checks an argument map against the contract: required fields must
// be present and non-null, unknown fields are rejected, and values must match
// the declared kinds. Optional fields may be absent or null.
//
// Validation is a convenience for the calling layer; adapters forward
// arguments without it.
func (c *Contract) Validate(args map[string]any) error {
	for pair := c.fields.Oldest(); pair != nil; pair = pair.Next() {
		f := pair.Value
		v, ok := args[f.Name]
		if !ok || v == nil {
			if f.Required {
				return errors.Errorf("%s: missing required field %q", c.name, f.Name)
			}
			continue
		}
		if !f.Kind.accepts(v) {
			return errors.Errorf("%s: field %q: expected %s, got %T", c.name, f.Name, f.Kind, v)
		}
	}
	for name := range args {
		if f, _ := c.fields.Get(name); f == nil {
			return errors.Errorf("%s: unknown field %q", c.name, name)
		}
	}
	return nil
}

// accepts reports whether a decoded JSON value matches the kind. Numbers
// arrive as float64 from encoding/json and as json.Number from decoders with
// UseNumber enabled; both are accepted.
func (k Kind) accepts(v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindInteger:
		switch n := v.(type) {
		case float64:
			return n == math.Trunc(n)
		case json.Number:
			_, err := n.Int64()
			return err == nil
		case int, int32, int64:
			return true
		}
		return false
	case KindNumber:
		switch v.(type) {
		case float64, json.Number, int, int32, int64:
			return true
		}
		return false
	case KindArray:
		_, ok := v.([]any)
		return ok
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

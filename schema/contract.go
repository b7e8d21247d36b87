// Package schema converts remotely-declared tool input schemas into local
// parameter contracts, and reflects local Go types into JSON schemas for
// locally-defined tools.
package schema

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/effective-security/mcpbridge/mcp"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the primitive kind of a contract field. Kind values double as JSON
// schema type names.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// kindOf maps a declared wire type to a contract kind. The mapping is total:
// unknown or absent declarations fall back to string.
func kindOf(declared string) Kind {
	switch declared {
	case "integer":
		return KindInteger
	case "number":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "array":
		return KindArray
	case "object":
		return KindObject
	default:
		return KindString
	}
}

// Field is one parameter of a contract. Required fields carry no default;
// optional fields default to absent.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
}

// Contract describes the arguments an operation accepts. Enumeration order
// matches the property order of the source schema.
type Contract struct {
	name   string
	fields *orderedmap.OrderedMap[string, *Field]
}

// Translate derives an independent Contract from a remote input schema. It is
// a pure function and never fails: a nil schema or one without properties
// yields the empty contract, which accepts no arguments.
func Translate(in *mcp.InputSchema, name string) *Contract {
	c := &Contract{
		name:   name,
		fields: orderedmap.New[string, *Field](),
	}
	if in == nil || in.Properties == nil {
		return c
	}

	required := make(map[string]bool, len(in.Required))
	for _, fn := range in.Required {
		required[fn] = true
	}

	for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
		f := &Field{
			Name:     pair.Key,
			Kind:     KindString,
			Required: required[pair.Key],
		}
		if prop := pair.Value; prop != nil {
			f.Kind = kindOf(prop.Type)
			f.Description = prop.Description
		}
		c.fields.Set(pair.Key, f)
	}
	return c
}

// Name returns the contract identifier.
func (c *Contract) Name() string {
	return c.name
}

// Len returns the number of declared fields.
func (c *Contract) Len() int {
	return c.fields.Len()
}

// Field returns the named field, or nil when the contract does not declare it.
func (c *Contract) Field(name string) *Field {
	f, _ := c.fields.Get(name)
	return f
}

// Fields returns all fields in declaration order.
func (c *Contract) Fields() []*Field {
	res := make([]*Field, 0, c.fields.Len())
	for pair := c.fields.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Value)
	}
	return res
}

// Parameters returns the function-definition JSON schema for the contract,
// with properties emitted in declaration order.
func (c *Contract) Parameters() any {
	props := orderedmap.New[string, any]()
	var required []string
	for pair := c.fields.Oldest(); pair != nil; pair = pair.Next() {
		f := pair.Value
		p := map[string]any{
			"type": string(f.Kind),
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props.Set(f.Name, p)
		if f.Required {
			required = append(required, f.Name)
		}
	}

	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return params
}

// ContractName derives a stable, readable contract identifier from an
// operation name: "search-bugs" becomes "SearchBugsInput". Names with no
// usable characters get a hash-based identifier instead.
func ContractName(opName string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(opName, isSeparator) {
		runes := []rune(word)
		b.WriteRune(unicode.ToUpper(runes[0]))
		for _, r := range runes[1:] {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if b.Len() == 0 {
		return "Tool" + strconv.FormatUint(xxhash.Sum64String(opName), 10) + "Input"
	}
	return b.String() + "Input"
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

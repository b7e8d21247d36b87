// Package catalog turns the operations advertised by an MCP session into the
// homogeneous tool collection consumed by agents.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/schema"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/effective-security/mcpbridge/tools/mcptool"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "catalog")

// Session is the narrow session surface the builder needs. *mcp.Session
// satisfies it.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Catalog is the ordered set of adapted tools from one listing. All adapters
// share the session the catalog was built from; the session must stay open
// for as long as the catalog is in use.
type Catalog struct {
	tools  []tools.ITool
	byName map[string]tools.ITool
}

// Build lists the session's operations once and adapts each of them,
// preserving the remote listing order. Schema translation is total, so the
// only failure mode is the listing call itself.
func Build(ctx context.Context, session Session) (*Catalog, error) {
	defs, err := session.ListTools(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "list tools")
	}

	c := &Catalog{
		byName: make(map[string]tools.ITool, len(defs)),
	}
	for _, def := range defs {
		contract := schema.Translate(def.InputSchema, schema.ContractName(def.Name))
		adapted := mcptool.New(session, def.Name, def.Description, contract)
		c.tools = append(c.tools, adapted)

		if _, ok := c.byName[def.Name]; ok {
			// Remote listings are not deduplicated; lookups by name resolve
			// to the first entry.
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "duplicate_tool_name",
				"tool", def.Name,
			)
			continue
		}
		c.byName[def.Name] = adapted

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_registered",
			"tool", def.Name,
			"contract", contract.Name(),
			"params", contract.Len(),
		)
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "catalog_built",
		"tools", len(c.tools),
	)
	return c, nil
}

// Tools returns all adapters in remote listing order.
func (c *Catalog) Tools() []tools.ITool {
	return c.tools
}

// Get returns the named adapter, or nil. For duplicated remote names the
// first listed entry wins.
func (c *Catalog) Get(name string) tools.ITool {
	return c.byName[name]
}

// Len returns the number of adapted tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Names returns the tool names in listing order, including duplicates.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		names = append(names, t.Name())
	}
	return names
}

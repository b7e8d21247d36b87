// Package mcptool adapts operations discovered on an MCP server into the
// tools.ITool contract consumed by agents.
package mcptool

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/llmutils"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/pkg/metricskey"
	"github.com/effective-security/mcpbridge/schema"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "mcptool")

// NoResponse is returned when an invocation yields no content items.
const NoResponse = "No response from tool"

// ErrorPrefix starts every invocation failure reported as tool output.
const ErrorPrefix = "Error executing tool: "

// Invoker is the subset of the session used by the adapter.
type Invoker interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Tool adapts one remote operation. It holds the operation name and session
// as explicit fields and keeps no per-invocation state; concurrent calls are
// safe for as long as the session remains open.
type Tool struct {
	session     Invoker
	name        string
	description string
	contract    *schema.Contract
	funcParams  any
}

var _ tools.ITool = (*Tool)(nil)

// New returns an adapter bound to one operation on the given session. An
// empty remote description is defaulted.
func New(session Invoker, name, description string, contract *schema.Contract) *Tool {
	if description == "" {
		description = "MCP tool: " + name
	}
	return &Tool{
		session:     session,
		name:        name,
		description: description,
		contract:    contract,
		funcParams:  contract.Parameters(),
	}
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return t.funcParams
}

// Contract returns the parameter contract derived from the remote schema.
func (t *Tool) Contract() *schema.Contract {
	return t.contract
}

// Invoke calls the remote operation and normalizes the result to text:
// the first "text" content item verbatim; otherwise an indented JSON
// rendering of all items so no data is dropped; NoResponse when the result
// is empty. Arguments are forwarded without validation. Failures of any kind
// are reported in the returned string, never as an error, so the reasoning
// layer always receives output it can act on.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) string {
	started := time.Now()
	res, err := t.session.CallTool(ctx, t.name, args)
	metricskey.PerfToolCall.MeasureSince(started, t.name)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, t.name)
		logger.ContextKV(ctx, xlog.WARNING,
			"tool", t.name,
			"status", "invoke_failed",
			"err", err.Error(),
		)
		return ErrorPrefix + err.Error()
	}
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, t.name)

	if res.IsError {
		// The result still carries the failure text; pass it through as data.
		logger.ContextKV(ctx, xlog.WARNING,
			"tool", t.name,
			"status", "tool_reported_error",
		)
	}

	if len(res.Content) == 0 {
		return NoResponse
	}
	for _, item := range res.Content {
		if item.Type == mcp.ContentTypeText {
			return item.Text
		}
	}
	return llmutils.ToJSONIndent(res.Content)
}

// Call implements tools.ITool. The input is the JSON argument object
// produced by the model; it is decoded and forwarded verbatim. Invocation
// failures are normalized by Invoke and never surface as errors.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &args); err != nil {
			return "", errors.WithStack(tools.ErrFailedUnmarshalInput)
		}
	}
	return t.Invoke(ctx, args), nil
}

package callbacks_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/callbacks"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/stretchr/testify/assert"
)

type fakeTool struct{}

func (fakeTool) Name() string        { return "search-bugs" }
func (fakeTool) Description() string { return "Search the bug tracker" }
func (fakeTool) Parameters() any     { return map[string]any{"type": "object"} }
func (fakeTool) Call(context.Context, string) (string, error) {
	return "", nil
}

func Test_Printer(t *testing.T) {
	ctx := context.Background()
	tool := fakeTool{}

	var buf strings.Builder
	cb := callbacks.NewPrinter(&buf, callbacks.ModeDefault)
	cb.OnToolStart(ctx, tool, `{"query":"crash"}`)
	cb.OnToolEnd(ctx, tool, `{"query":"crash"}`, "3 bugs found")
	cb.OnToolError(ctx, tool, `{"query":"crash"}`, errors.New("timeout"))

	exp := `TOOL START: search-bugs
TOOL END: search-bugs
TOOL ERROR: search-bugs: timeout
`
	assert.Equal(t, exp, buf.String())

	buf.Reset()
	cb = callbacks.NewPrinter(&buf, callbacks.ModeVerbose)
	cb.OnToolStart(ctx, tool, `{"query":"crash"}`)
	cb.OnToolEnd(ctx, tool, `{"query":"crash"}`, "3 bugs found")

	exp = `TOOL START: search-bugs: {"query":"crash"}
TOOL END: search-bugs: 3 bugs found
`
	assert.Equal(t, exp, buf.String())
}

func Test_Fanout(t *testing.T) {
	ctx := context.Background()
	tool := fakeTool{}

	var buf1, buf2 strings.Builder
	fan := callbacks.NewFanout(
		callbacks.NewPrinter(&buf1, callbacks.ModeDefault),
		callbacks.NewNoop(),
	)
	fan.Add(callbacks.NewPrinter(&buf2, callbacks.ModeDefault))

	var _ tools.Callback = fan

	fan.OnToolStart(ctx, tool, "{}")
	fan.OnToolEnd(ctx, tool, "{}", "done")

	assert.Equal(t, buf1.String(), buf2.String())
	assert.Contains(t, buf1.String(), "TOOL START: search-bugs")
}

// Package callbacks provides tool lifecycle observers: a writer-backed
// printer for interactive use, a package logger, and a fanout combinator.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpbridge/tools"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ tools.Callback = (*Noop)(nil)
	_ tools.Callback = (*Printer)(nil)
	_ tools.Callback = (*PackageLogger)(nil)
	_ tools.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []tools.Callback
}

func NewFanout(callbacks ...tools.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback tools.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

// Noop is a callback handler that ignores all events.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) OnToolStart(context.Context, tools.ITool, string)       {}
func (Noop) OnToolEnd(context.Context, tools.ITool, string, string) {}
func (Noop) OnToolError(context.Context, tools.ITool, string, error) {
}

// Printer is a callback handler that prints the tool events to the writer.
// In verbose mode the inputs and outputs are included.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	mode Mode
}

func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

func (l *Printer) OnToolStart(_ context.Context, tool tools.ITool, input string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mode == ModeVerbose {
		fmt.Fprintf(l.w, "TOOL START: %s: %s\n", tool.Name(), input)
	} else {
		fmt.Fprintf(l.w, "TOOL START: %s\n", tool.Name())
	}
}

func (l *Printer) OnToolEnd(_ context.Context, tool tools.ITool, input string, output string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mode == ModeVerbose {
		fmt.Fprintf(l.w, "TOOL END: %s: %s\n", tool.Name(), output)
	} else {
		fmt.Fprintf(l.w, "TOOL END: %s\n", tool.Name())
	}
}

func (l *Printer) OnToolError(_ context.Context, tool tools.ITool, input string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "TOOL ERROR: %s: %s\n", tool.Name(), err.Error())
}

// PackageLogger is a callback handler that logs the tool events.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_end",
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"status", "tool_error",
		"tool", tool.Name(),
		"input", input,
		"err", err.Error(),
	)
}

// Package assistants runs a chat model against a set of tools, resolving the
// model's tool calls until it produces a final answer.
package assistants

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/llmutils"
	"github.com/effective-security/mcpbridge/pkg/metricskey"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "assistants")

// Completer creates one chat completion. openai.Client's Chat.Completions
// service satisfies it.
type Completer interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Assistant drives the tool-call loop for one model over a fixed tool set.
type Assistant struct {
	completer Completer
	cfg       *Config

	name        string
	toolsByName map[string]tools.ITool
	toolsNames  []string
	llmToolDefs []openai.ChatCompletionToolUnionParam
}

// NewAssistant initializes the assistant with the given tools. Tool names are
// indexed case-insensitively, matching how models tend to echo them back.
func NewAssistant(completer Completer, list []tools.ITool, options ...Option) *Assistant {
	a := &Assistant{
		completer:   completer,
		cfg:         NewConfig(options...),
		name:        "MCP Agent",
		toolsByName: make(map[string]tools.ITool, len(list)),
	}
	for _, tool := range list {
		a.toolsByName[strings.ToLower(tool.Name())] = tool
		a.toolsNames = append(a.toolsNames, tool.Name())
		a.llmToolDefs = append(a.llmToolDefs, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name(),
			Description: openai.String(tool.Description()),
			Parameters:  functionParameters(tool.Parameters()),
		}))
	}
	return a
}

// WithName sets the name of the assistant, used in logs and metrics.
func (a *Assistant) WithName(name string) *Assistant {
	a.name = name
	return a
}

// Name returns the name of the assistant.
func (a *Assistant) Name() string {
	return a.name
}

// Tools returns the registered tool names in registration order.
func (a *Assistant) Tools() []string {
	return a.toolsNames
}

// Run executes one conversation turn, resolving tool calls until the model
// returns a final text answer.
func (a *Assistant) Run(ctx context.Context, input string) (string, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.name)

	res, err := a.run(ctx, input)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.name)
		return "", err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.name)
	return res, nil
}

func (a *Assistant) run(ctx context.Context, input string) (string, error) {
	runID := uuid.NewString()

	var messages []openai.ChatCompletionMessageParamUnion
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(a.cfg.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(input))

	totalToolCalls := 0
	for {
		if len(messages) >= a.cfg.MaxMessages {
			return "", errors.Newf("assistant %s: the messages count exceeded limit", a.name)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), a.name, a.cfg.Model)

		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(a.cfg.Model),
			Messages: messages,
		}
		if len(a.llmToolDefs) > 0 {
			params.Tools = a.llmToolDefs
		}

		resp, err := a.completer.New(ctx, params)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate completion")
		}

		metricskey.StatsLLMInputTokens.IncrCounter(float64(resp.Usage.PromptTokens), a.name, a.cfg.Model)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(resp.Usage.CompletionTokens), a.name, a.cfg.Model)

		if len(resp.Choices) == 0 {
			return "", errors.Newf("assistant %s: LLM returned empty response", a.name)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"run_id", runID,
			"status", "tool_calls",
			"count", len(msg.ToolCalls),
		)

		totalToolCalls += len(msg.ToolCalls)
		if totalToolCalls > a.cfg.MaxToolCalls {
			return "", errors.Newf("assistant %s: the tool calls limit is exceeded", a.name)
		}

		messages = append(messages, msg.ToParam())
		messages = append(messages, a.executeToolCalls(ctx, runID, msg.ToolCalls)...)
	}
}

// executeToolCalls runs all tool calls from one response concurrently and
// returns the tool messages in the order the calls were issued.
func (a *Assistant) executeToolCalls(ctx context.Context, runID string, calls []openai.ChatCompletionMessageToolCallUnion) []openai.ChatCompletionMessageParamUnion {
	outputs := make([]string, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(idx int, tc openai.ChatCompletionMessageToolCallUnion) {
			defer wg.Done()
			outputs[idx] = a.executeToolCall(ctx, runID, tc.Function.Name, tc.Function.Arguments)
		}(i, call)
	}
	wg.Wait()

	res := make([]openai.ChatCompletionMessageParamUnion, len(calls))
	for i, call := range calls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", call.Function.Name, i)
		}
		res[i] = openai.ToolMessage(outputs[i], id)
	}
	return res
}

func (a *Assistant) executeToolCall(ctx context.Context, runID, toolName, toolArgs string) string {
	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		availableTools := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"run_id", runID,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools)
	}

	if a.cfg.Callback != nil {
		a.cfg.Callback.OnToolStart(ctx, tool, toolArgs)
	}

	res, err := tool.Call(ctx, toolArgs)
	if err != nil {
		if a.cfg.Callback != nil {
			a.cfg.Callback.OnToolError(ctx, tool, toolArgs, err)
		}
		if errors.Is(err, tools.ErrFailedUnmarshalInput) {
			return llmutils.AddComment("assistant", a.name, "error", "Failed to unmarshal input, check the JSON schema and try again.")
		}
		return llmutils.AddComment("assistant", a.name, "error", err.Error())
	}

	if a.cfg.Callback != nil {
		a.cfg.Callback.OnToolEnd(ctx, tool, toolArgs, res)
	}
	return res
}

// functionParameters coerces a tool's parameters definition into the shape
// the completion API expects. Contract-backed tools already expose a map;
// reflected schemas are round-tripped through JSON.
func functionParameters(v any) shared.FunctionParameters {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return shared.FunctionParameters{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return shared.FunctionParameters{"type": "object"}
	}
	return m
}

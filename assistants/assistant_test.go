package assistants_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/assistants"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter replays canned completion responses and records the
// request parameters it received.
type scriptedCompleter struct {
	t         *testing.T
	responses []string
	requests  []openai.ChatCompletionNewParams
}

func (s *scriptedCompleter) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.requests = append(s.requests, params)
	require.NotEmpty(s.t, s.responses, "completer called more times than scripted")
	js := s.responses[0]
	s.responses = s.responses[1:]

	var resp openai.ChatCompletion
	require.NoError(s.t, resp.UnmarshalJSON([]byte(js)))
	return &resp, nil
}

func finalAnswer(content string) string {
	bs, _ := json.Marshal(map[string]any{
		"id":    "cmpl-1",
		"model": "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(bs)
}

func toolCallResponse(callID, name, args string) string {
	bs, _ := json.Marshal(map[string]any{
		"id":    "cmpl-1",
		"model": "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":   callID,
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": args,
					},
				}},
			},
		}},
		"usage": map[string]any{"prompt_tokens": 20, "completion_tokens": 8, "total_tokens": 28},
	})
	return string(bs)
}

// stubTool is a minimal in-process tool.
type stubTool struct {
	name    string
	inputs  []string
	output  string
	callErr error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	}
}

func (s *stubTool) Call(_ context.Context, input string) (string, error) {
	s.inputs = append(s.inputs, input)
	return s.output, s.callErr
}

func messagesJSON(t *testing.T, params openai.ChatCompletionNewParams) string {
	t.Helper()
	bs, err := json.Marshal(params.Messages)
	require.NoError(t, err)
	return string(bs)
}

func TestAssistant_DirectAnswer(t *testing.T) {
	completer := &scriptedCompleter{t: t, responses: []string{finalAnswer("Paris")}}
	a := assistants.NewAssistant(completer, nil,
		assistants.WithModel("test-model"),
		assistants.WithSystemPrompt("Answer concisely."),
	)

	res, err := a.Run(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", res)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, "test-model", string(req.Model))
	assert.Empty(t, req.Tools)

	js := messagesJSON(t, req)
	assert.Contains(t, js, "Answer concisely.")
	assert.Contains(t, js, "What is the capital of France?")
}

func TestAssistant_ToolCallLoop(t *testing.T) {
	search := &stubTool{name: "search-bugs", output: "3 bugs found"}
	completer := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("call_1", "search-bugs", `{"query": "crash"}`),
		finalAnswer("There are 3 matching bugs."),
	}}

	a := assistants.NewAssistant(completer, []tools.ITool{search},
		assistants.WithModel("test-model"),
	)

	res, err := a.Run(context.Background(), "Any crash bugs?")
	require.NoError(t, err)
	assert.Equal(t, "There are 3 matching bugs.", res)

	// the tool received the model's arguments verbatim
	require.Len(t, search.inputs, 1)
	assert.JSONEq(t, `{"query": "crash"}`, search.inputs[0])

	require.Len(t, completer.requests, 2)

	// tool definitions were advertised on both requests
	require.Len(t, completer.requests[0].Tools, 1)
	defJS, err := json.Marshal(completer.requests[0].Tools[0])
	require.NoError(t, err)
	assert.Contains(t, string(defJS), `"name":"search-bugs"`)

	// the follow-up request carries the tool output correlated by call id
	js := messagesJSON(t, completer.requests[1])
	assert.Contains(t, js, "call_1")
	assert.Contains(t, js, "3 bugs found")
}

func TestAssistant_ToolNotFound(t *testing.T) {
	search := &stubTool{name: "search-bugs", output: "ok"}
	completer := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("call_1", "does-not-exist", `{}`),
		finalAnswer("done"),
	}}

	a := assistants.NewAssistant(completer, []tools.ITool{search},
		assistants.WithModel("test-model"),
	)

	res, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.Empty(t, search.inputs)

	js := messagesJSON(t, completer.requests[1])
	assert.Contains(t, js, "Tool `does-not-exist` not found")
	assert.Contains(t, js, "search-bugs")
}

func TestAssistant_CaseInsensitiveToolNames(t *testing.T) {
	search := &stubTool{name: "Search-Bugs", output: "found"}
	completer := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("call_1", "search-bugs", `{"query": "x"}`),
		finalAnswer("done"),
	}}

	a := assistants.NewAssistant(completer, []tools.ITool{search},
		assistants.WithModel("test-model"),
	)

	_, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, search.inputs, 1)
}

func TestAssistant_ToolCallLimit(t *testing.T) {
	search := &stubTool{name: "search-bugs", output: "more"}
	completer := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("call_1", "search-bugs", `{}`),
		toolCallResponse("call_2", "search-bugs", `{}`),
	}}

	a := assistants.NewAssistant(completer, []tools.ITool{search},
		assistants.WithModel("test-model"),
		assistants.WithMaxToolCalls(1),
	)

	_, err := a.Run(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool calls limit is exceeded")
}

func TestAssistant_EmptyResponse(t *testing.T) {
	completer := &scriptedCompleter{t: t, responses: []string{
		`{"id":"cmpl-1","model":"test-model","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0,"total_tokens":1}}`,
	}}

	a := assistants.NewAssistant(completer, nil, assistants.WithModel("test-model"))

	_, err := a.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestAssistant_CompleterError(t *testing.T) {
	a := assistants.NewAssistant(&failingCompleter{}, nil, assistants.WithModel("test-model"))

	_, err := a.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate completion")
}

type failingCompleter struct{}

func (failingCompleter) New(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error) {
	return nil, errors.New("rate limited")
}

func TestAssistant_Name(t *testing.T) {
	a := assistants.NewAssistant(&failingCompleter{}, nil)
	assert.Equal(t, "MCP Agent", a.Name())
	assert.Equal(t, "triage", a.WithName("triage").Name())
	assert.Empty(t, a.Tools())
}

package mcp

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ProtocolVersion is the MCP revision negotiated during initialize.
const ProtocolVersion = "2025-03-26"

// Tool describes one operation advertised by the remote server.
type Tool struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	InputSchema *InputSchema `json:"inputSchema,omitempty"`
}

// InputSchema is the JSON-schema-like shape of a tool's arguments.
// Properties preserve the declaration order received on the wire.
type InputSchema struct {
	Type       string                                    `json:"type,omitempty"`
	Properties *orderedmap.OrderedMap[string, *Property] `json:"properties,omitempty"`
	Required   []string                                  `json:"required,omitempty"`
}

// Property describes a single schema property.
type Property struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Content kinds defined by the protocol. Anything else is an unknown kind and
// is carried through via the retained raw JSON.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeResource = "resource"
)

// Content is one item of a tool result, tagged by Type. Text is populated for
// "text" items. The original JSON is retained so items of unknown kinds keep
// all their fields when re-serialized.
type Content struct {
	Type string
	Text string

	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(bs []byte) error {
	var v struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(bs, &v); err != nil {
		return err
	}
	c.Type = v.Type
	c.Text = v.Text
	c.raw = append(c.raw[:0], bs...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}{Type: c.Type, Text: c.Text})
}

// CallToolResult is the payload returned by tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is a JSON-RPC error returned by the server.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// matchesID reports whether the response carries the given numeric request id.
// Server-initiated requests and notifications have no id, or one of a
// different shape, and are skipped by the caller.
func (r *rpcResponse) matchesID(id int64) bool {
	if len(r.ID) == 0 {
		return false
	}
	var got int64
	if err := json.Unmarshal(r.ID, &got); err != nil {
		return false
	}
	return got == id
}

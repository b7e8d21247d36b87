// Package mcp implements a client for MCP servers over the streamable HTTP
// transport: JSON-RPC request/response exchange with an initialize handshake,
// tool listing and tool invocation.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "mcp")

// ErrSessionClosed is returned by any call made after Close.
var ErrSessionClosed = errors.New("mcp: session closed")

const (
	clientName    = "mcpbridge"
	clientVersion = "1.0"

	sessionIDHeader = "Mcp-Session-Id"

	// scanner limit for a single SSE frame
	maxEventSize = 16 * 1024 * 1024
)

// Session is an initialized connection to an MCP server. A Session is safe
// for concurrent use: every call is an independent HTTP exchange correlated
// by its own request id.
type Session struct {
	endpoint   string
	authToken  string
	httpClient *http.Client

	nextID atomic.Int64
	closed atomic.Bool

	mu        sync.Mutex
	sessionID string
}

// Option customizes a Session before the handshake.
type Option func(*Session)

// WithHTTPClient overrides the HTTP client used for all exchanges.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

// Connect establishes a session to the MCP server at serverURL and performs
// the initialize handshake. If authToken is not empty it is attached as a
// bearer credential on every request. The caller owns the returned Session
// and must Close it.
func Connect(ctx context.Context, serverURL, authToken string, ops ...Option) (*Session, error) {
	s := &Session{
		endpoint:   serverURL,
		authToken:  authToken,
		httpClient: http.DefaultClient,
	}
	for _, op := range ops {
		op(s)
	}

	var res initializeResult
	err := s.call(ctx, "initialize", initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	}, &res)
	if err != nil {
		return nil, errors.WithMessage(err, "initialize")
	}

	if err := s.notify(ctx, "notifications/initialized"); err != nil {
		// initialize may have negotiated a session id; release it
		_ = s.Close()
		return nil, errors.WithMessage(err, "initialized notification")
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "connected",
		"endpoint", serverURL,
		"server", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)
	return s, nil
}

// ListTools returns the tools advertised by the server, in listing order,
// following pagination cursors until the listing is complete.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	var all []Tool
	cursor := ""
	for {
		var res listToolsResult
		var params any
		if cursor != "" {
			params = listToolsParams{Cursor: cursor}
		}
		if err := s.call(ctx, "tools/list", params, &res); err != nil {
			return nil, err
		}
		all = append(all, res.Tools...)
		if res.NextCursor == "" {
			return all, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool invokes the named tool with the given arguments and returns its
// result. Arguments are forwarded verbatim; a nil map is sent as empty.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var res CallToolResult
	err := s.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Close terminates the session. When a session id was negotiated, the server
// is asked to discard it. Close is idempotent; all subsequent calls on the
// session fail with ErrSessionClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	sid := s.getSessionID()
	if sid == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set(sessionIDHeader, sid)
	s.setAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Session teardown is best effort; the server expires it anyway.
		logger.KV(xlog.DEBUG, "status", "session_delete_failed", "err", err.Error())
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Session) getSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) captureSessionID(h http.Header) {
	sid := h.Get(sessionIDHeader)
	if sid == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		s.sessionID = sid
	}
}

func (s *Session) setAuthHeader(req *http.Request) {
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
}

// call performs one JSON-RPC exchange and unmarshals the result into out.
func (s *Session) call(ctx context.Context, method string, params any, out any) error {
	if s.closed.Load() {
		return errors.WithStack(ErrSessionClosed)
	}

	id := s.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp, err := s.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.captureSessionID(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bs, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("mcp: %s returned status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(bs)))
	}

	rpcRes, err := s.readResponse(ctx, resp, id)
	if err != nil {
		return errors.WithMessagef(err, "mcp: %s", method)
	}
	if rpcRes.Error != nil {
		return errors.WithStack(rpcRes.Error)
	}
	if out != nil && len(rpcRes.Result) > 0 {
		if err := json.Unmarshal(rpcRes.Result, out); err != nil {
			return errors.WithMessagef(err, "mcp: %s result", method)
		}
	}
	return nil
}

// notify sends a one-way notification; no response correlation is expected.
func (s *Session) notify(ctx context.Context, method string) error {
	if s.closed.Load() {
		return errors.WithStack(ErrSessionClosed)
	}

	body, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method})
	if err != nil {
		return errors.WithStack(err)
	}

	resp, err := s.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("mcp: %s returned status %d", method, resp.StatusCode)
	}
	s.captureSessionID(resp.Header)
	return nil
}

func (s *Session) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	s.setAuthHeader(req)
	if sid := s.getSessionID(); sid != "" {
		req.Header.Set(sessionIDHeader, sid)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "mcp: request failed")
	}
	return resp, nil
}

// readResponse decodes the JSON-RPC response for the given request id. The
// streamable HTTP transport answers either with a plain JSON body or with an
// SSE stream whose frames are scanned until the matching message arrives.
func (s *Session) readResponse(ctx context.Context, resp *http.Response, id int64) (*rpcResponse, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return s.scanEvents(ctx, resp.Body, id)
	}

	var rpcRes rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcRes); err != nil {
		return nil, errors.WithMessage(err, "invalid response body")
	}
	return &rpcRes, nil
}

// scanEvents reads SSE frames off the stream until the message with the
// matching id is found. Frames that are not JSON-RPC responses (server log
// notifications, progress updates) are skipped.
func (s *Session) scanEvents(ctx context.Context, r io.Reader, id int64) (*rpcResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var data []string
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		default:
		}

		line := scanner.Text()
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(after, " "))
			continue
		}
		if line != "" {
			// comments and event/id/retry fields are irrelevant here
			continue
		}
		if len(data) == 0 {
			continue
		}

		payload := strings.Join(data, "\n")
		data = nil

		var rpcRes rpcResponse
		if err := json.Unmarshal([]byte(payload), &rpcRes); err != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "status", "skipping_non_rpc_event")
			continue
		}
		if rpcRes.matchesID(id) {
			return &rpcRes, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithMessage(err, "read event stream")
	}
	return nil, errors.Errorf("stream ended without response for request %d", id)
}

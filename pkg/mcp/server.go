// Package mcp exposes project editing and terrain builds as tools over
// JSON-RPC 2.0, following the Model Context Protocol shape: initialize,
// tools/list, tools/call and ping.
//
// Every tool that touches a project goes through an [edit.Editor], so calls
// arriving concurrently over HTTP are serialized per file. A failing tool
// is reported as a normal result with isError set and the error code in
// its structured content; JSON-RPC errors are reserved for malformed
// requests and unknown methods or tools.
//
// Two transports are provided: newline-delimited messages on a reader and
// writer ([Server.ServeStdio]) and HTTP ([Server.Routes]).
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yushimatenjin/gaea-mcp/pkg/buildinfo"
	"github.com/yushimatenjin/gaea-mcp/pkg/catalog"
	"github.com/yushimatenjin/gaea-mcp/pkg/edit"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// ServerName is reported in initialize.
const ServerName = "gaea-mcp"

const instructions = "Edit Gaea .terrain project files node by node and build them with Gaea.Swarm. " +
	"Use list_node_types to discover node types and their ports before add_node."

// Options configure a Server.
type Options struct {
	// Editor serializes file access. Nil means a process-local editor.
	Editor *edit.Editor
	// Catalog resolves node types for add_node. Nil means the built-in one.
	Catalog *catalog.Catalog
	// Logger receives request and build logs. Nil discards them.
	Logger *log.Logger
	// SwarmPath is the configured renderer path, passed to swarm.Detect.
	SwarmPath string
	// BuildTimeout bounds build_terrain when the call sets no timeout.
	BuildTimeout time.Duration
}

type handler func(ctx context.Context, args json.RawMessage) (any, error)

// Server dispatches JSON-RPC requests to tools.
type Server struct {
	opts     Options
	editor   *edit.Editor
	catalog  *catalog.Catalog
	logger   *log.Logger
	tools    []Tool
	handlers map[string]handler
}

// New returns a Server with every tool registered.
func New(opts Options) *Server {
	s := &Server{
		opts:     opts,
		editor:   opts.Editor,
		catalog:  opts.Catalog,
		logger:   opts.Logger,
		handlers: make(map[string]handler),
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.editor == nil {
		s.editor = edit.New(nil, s.logger)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	s.registerTools()
	return s
}

func (s *Server) register(t Tool, h handler) {
	s.tools = append(s.tools, t)
	s.handlers[t.Name] = h
}

// Tools returns the registered tools in registration order.
func (s *Server) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Handle processes one encoded request and returns the encoded response,
// or nil for a notification.
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return encode(errorResponse(nil, CodeInvalidRequest, "batch requests are not supported"))
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return encode(errorResponse(nil, CodeParseError, "parse error: "+err.Error()))
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		return encode(errorResponse(req.ID, CodeInvalidRequest, "invalid request"))
	}
	resp := s.Dispatch(ctx, &req)
	if req.IsNotification() || resp == nil {
		return nil
	}
	return encode(resp)
}

// Dispatch runs one decoded request. It returns nil for notifications.
func (s *Server) Dispatch(ctx context.Context, req *Request) *Response {
	var (
		result any
		rpcErr *ResponseError
	)
	switch req.Method {
	case "initialize":
		result = initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      implementation{Name: ServerName, Version: buildinfo.Version},
			Instructions:    instructions,
		}
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = listToolsResult{Tools: s.Tools()}
	case "tools/call":
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		rpcErr = &ResponseError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *ResponseError) {
	var p callToolParams
	if err := json.Unmarshal(raw, &p); err != nil || p.Name == "" {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: "tools/call needs a tool name"}
	}
	h, ok := s.handlers[p.Name]
	if !ok {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: "unknown tool: " + p.Name}
	}

	start := time.Now()
	out, err := s.invoke(ctx, h, p.Arguments)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		s.logger.Warn("tool failed", "tool", p.Name, "elapsed", elapsed, "err", err)
		return errorResult(err), nil
	}
	s.logger.Debug("tool", "name", p.Name, "elapsed", elapsed)
	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(gerrors.Wrap(gerrors.ErrCodeInternal, err, "encode %s result", p.Name)), nil
	}
	return &CallToolResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: out,
	}, nil
}

// invoke runs h, turning a panic into an INTERNAL_ERROR result.
func (s *Server) invoke(ctx context.Context, h handler, args json.RawMessage) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panic", "panic", r)
			err = gerrors.New(gerrors.ErrCodeInternal, "internal error: %v", r)
		}
	}()
	return h(ctx, args)
}

func errorResult(err error) *CallToolResult {
	code := string(gerrors.GetCode(err))
	switch {
	case code != "":
	case errors.Is(err, context.Canceled):
		code = "CANCELED"
	default:
		code = string(gerrors.ErrCodeInternal)
	}
	te := ToolError{Code: code, Message: gerrors.UserMessage(err)}
	var e *gerrors.Error
	if errors.As(err, &e) && e.Cause != nil {
		te.Message += ": " + e.Cause.Error()
	}
	return &CallToolResult{
		Content:           []Content{{Type: "text", Text: fmt.Sprintf("%s: %s", te.Code, te.Message)}},
		StructuredContent: te,
		IsError:           true,
	}
}

func encode(resp *Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(errorResponse(resp.ID, CodeInternalError, "encode response: "+err.Error()))
	}
	return b
}

// decodeArgs decodes tool arguments into T, rejecting unknown fields.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var v T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "invalid arguments")
	}
	return v, nil
}

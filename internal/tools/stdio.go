package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// JSON-RPC error codes used by the stdio transport
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

const maxLineSize = 1 << 20

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ServeStdio reads one JSON-RPC request per line from in and writes one
// response per line to out. Methods: tools/list, tools/call, ping.
// Notifications (requests without an id) get no response.
// It returns nil when in reaches EOF.
func (r *Registry) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	r.logger.Info("Serving tools on stdio")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, reply := r.handleLine(ctx, []byte(line))
		if !reply {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

func (r *Registry) handleLine(ctx context.Context, line []byte) (rpcResponse, bool) {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		r.logger.Warn("Malformed stdio request", zap.Error(err))
		return failure(nil, codeParseError, "parse error: "+err.Error()), true
	}
	notification := len(req.ID) == 0

	var resp rpcResponse
	switch req.Method {
	case "tools/list":
		resp = success(req.ID, map[string]interface{}{"tools": r.List()})
	case "tools/call":
		var call CallRequest
		if err := json.Unmarshal(req.Params, &call); err != nil || call.Name == "" {
			resp = failure(req.ID, codeInvalidParams, "params must contain a tool name")
			break
		}
		resp = success(req.ID, r.Call(ctx, call.Name, call.Arguments))
	case "ping":
		resp = success(req.ID, map[string]interface{}{})
	case "":
		resp = failure(req.ID, codeInvalidRequest, "method is required")
	default:
		resp = failure(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
	return resp, !notification
}

func success(id json.RawMessage, result interface{}) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: nullID(id), Result: result}
}

func failure(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: nullID(id), Error: &rpcError{Code: code, Message: message}}
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

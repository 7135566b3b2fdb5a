package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version stamped on every frame.
const Version = "2.0"

// Reserved error codes, mirroring the JSON-RPC reserved ranges.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternal       = -32000
)

// Request models one inbound frame. ID is kept raw so any scalar the
// parent sent (string, number, null) is echoed back byte for byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response models one outbound response frame. Exactly one of Result and
// Error is set. A nil ID marshals as null, which is how frames that never
// produced a usable id (parse failures) are answered.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// Notification is a server-initiated frame. It carries no id and is never
// a reply to anything.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Error follows the wire contract for structured failures.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Errorf helps build protocol errors.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the LSP client.
var (
	// ErrMissingLength indicates a frame arrived without a Content-Length header.
	ErrMissingLength = errors.New("missing Content-Length header")

	// ErrMalformed indicates a frame that could not be parsed.
	ErrMalformed = errors.New("malformed frame")

	// ErrInvalidUTF8 indicates a frame body that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("frame body is not valid UTF-8")

	// ErrNotInitialized indicates a command was issued to a session that has
	// not completed the initialize handshake.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrAlreadyInitialized indicates a second Initialize on a live session.
	ErrAlreadyInitialized = errors.New("session already initialized")

	// ErrChannelClosed indicates the session task has exited but the handle
	// is still being used.
	ErrChannelClosed = errors.New("session command queue closed")

	// ErrSessionFailed indicates the session terminated on a fatal error and
	// outstanding requests were dropped.
	ErrSessionFailed = errors.New("session failed")
)

// TransportError wraps a fatal framing or I/O failure on the wire. Transport
// errors terminate the session; they are never retried.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// SpawnError indicates the server process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a well-framed message with an invalid JSON-RPC
// shape, or a known method whose params failed to deserialize. Protocol
// errors are logged and the offending message skipped; they do not
// terminate the session.
type ProtocolError struct {
	Method string
	Err    error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("protocol error in %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RPCError represents a JSON-RPC error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	// JSON-RPC standard errors
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)

// LanguageError attributes an error to a language id at the handle or
// manager boundary.
type LanguageError struct {
	Language string
	Err      error
}

// Error implements the error interface.
func (e *LanguageError) Error() string {
	return fmt.Sprintf("server %s: %v", e.Language, e.Err)
}

// Unwrap returns the underlying error.
func (e *LanguageError) Unwrap() error {
	return e.Err
}

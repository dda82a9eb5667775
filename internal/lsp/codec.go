package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// jsonRPCVersion is the fixed version field on every message.
const jsonRPCVersion = "2.0"

// MessageKind classifies a decoded JSON-RPC message.
type MessageKind int

const (
	// KindRequest is a server-to-client request (id and method present).
	KindRequest MessageKind = iota + 1
	// KindResponse is a reply to one of our requests (id with result or error).
	KindResponse
	// KindNotification is a method without an id.
	KindNotification
)

// String returns the string representation of the message kind.
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Message is one decoded JSON-RPC frame.
type Message struct {
	Kind   MessageKind
	ID     int64           // numeric id of a response; -1 when absent or non-numeric
	RawID  json.RawMessage // verbatim id, echoed back when answering server requests
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *RPCError
}

// Codec frames JSON-RPC messages with Content-Length headers over a byte
// stream, per the LSP base protocol. Reads are single-consumer; writes are
// serialized internally so the session loop and shutdown path can share it.
type Codec struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

// NewCodec creates a codec over the given streams.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// outgoing message shapes

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

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// WriteRequest sends a request with the given id.
func (c *Codec) WriteRequest(id int64, method string, params any) error {
	return c.write(rpcRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params})
}

// WriteNotification sends a notification.
func (c *Codec) WriteNotification(method string, params any) error {
	return c.write(rpcNotification{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

// WriteResponse answers a server-to-client request. The id is echoed verbatim.
func (c *Codec) WriteResponse(id json.RawMessage, result any, rpcErr *RPCError) error {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return c.write(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result, Error: rpcErr})
}

func (c *Codec) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := c.writer.Write([]byte(header)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if _, err := c.writer.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Read consumes header lines until the blank separator, reads exactly
// Content-Length bytes of body, and classifies the message. Transport
// errors are fatal to the stream; a *ProtocolError leaves the stream
// readable and the caller may skip the message.
func (c *Codec) Read() (*Message, error) {
	length := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, &TransportError{Op: "read", Err: io.EOF}
			}
			return nil, &TransportError{Op: "read", Err: err}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &TransportError{Op: "read", Err: fmt.Errorf("%w: header %q", ErrMalformed, line)}
		}
		// Unknown headers (Content-Type in particular) are ignored.
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, &TransportError{Op: "read", Err: fmt.Errorf("%w: content length %q", ErrMalformed, value)}
			}
			length = n
		}
	}

	if length < 0 {
		return nil, &TransportError{Op: "read", Err: ErrMissingLength}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, &TransportError{Op: "read", Err: fmt.Errorf("truncated body: %w", err)}
	}

	if !utf8.Valid(body) {
		return nil, &TransportError{Op: "read", Err: ErrInvalidUTF8}
	}

	return classify(body)
}

// classify tags a body as request, response or notification from the
// presence of its id and method fields.
func classify(body []byte) (*Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, &TransportError{Op: "read", Err: fmt.Errorf("%w: invalid json", ErrMalformed)}
	}

	id := gjson.GetBytes(body, "id")
	method := gjson.GetBytes(body, "method")

	var kind MessageKind
	switch {
	case method.Exists() && id.Exists():
		kind = KindRequest
	case id.Exists():
		kind = KindResponse
	case method.Exists():
		kind = KindNotification
	default:
		return nil, &ProtocolError{Err: fmt.Errorf("message has neither id nor method")}
	}

	var env struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ProtocolError{Err: err}
	}

	msg := &Message{
		Kind:   kind,
		ID:     -1,
		RawID:  env.ID,
		Method: env.Method,
		Params: env.Params,
		Result: env.Result,
		Error:  env.Error,
	}
	// An error reply to an unparseable request carries id null; -1 never
	// matches a ledger entry, so it flows through the logged-drop path.
	if id.Type == gjson.Number {
		msg.ID = id.Int()
	}
	return msg, nil
}

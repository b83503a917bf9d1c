package wire

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/hostkit/toolhost/internal/errors"
)

// Version is the JSON-RPC version field value on every message.
const Version = "2.0"

// Kind classifies an inbound message by shape.
type Kind int

const (
	// KindRequest carries id and method: the peer expects a response.
	KindRequest Kind = iota
	// KindResponse carries id and exactly one of result or error.
	KindResponse
	// KindNotification carries method but no id: no response expected.
	KindNotification
)

// Request is an outgoing JSON-RPC request or notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"` // nil for notifications
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request expecting a response correlated by id.
func NewRequest(id int64, method string, params any) Request {
	return Request{
		JSONRPC: Version,
		ID:      &id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification builds a request with no id and no expected response.
func NewNotification(method string, params any) Request {
	return Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
}

// Error is the error object carried by a JSON-RPC error response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Message is one decoded inbound protocol message. Kind determines which
// fields are meaningful: requests and notifications carry Method/Params,
// responses carry Result or Err.
type Message struct {
	Kind   Kind
	ID     int64
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *Error
}

// envelope is the superset of fields across all message shapes, decoded once.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

var errNoIDOrMethod = stderrors.New("object carries neither id nor method")

// Decode parses one line into a Message, classifying it by which fields are
// present. Non-JSON input and JSON that matches no protocol shape return a
// MalformedMessageError; callers treat that as recoverable noise.
func Decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, &errors.MalformedMessageError{
			RawData: string(line),
			Err:     err,
		}
	}

	switch {
	case env.Method != "" && env.ID != nil:
		return Message{
			Kind:   KindRequest,
			ID:     *env.ID,
			Method: env.Method,
			Params: env.Params,
		}, nil

	case env.Method != "":
		return Message{
			Kind:   KindNotification,
			Method: env.Method,
			Params: env.Params,
		}, nil

	case env.ID != nil:
		return Message{
			Kind:   KindResponse,
			ID:     *env.ID,
			Result: env.Result,
			Err:    env.Error,
		}, nil

	default:
		return Message{}, &errors.MalformedMessageError{
			RawData: string(line),
			Err:     errNoIDOrMethod,
		}
	}
}

// Encode serializes an outgoing request to a single line without the
// trailing newline; the transport appends it.
func Encode(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return data, nil
}

// Package sandbox runs untrusted script code behind a message-passing
// boundary.
//
// The worker side (Serve) reads newline-delimited JSON requests, evaluates
// each one in a fresh JavaScript VM with nothing but the supplied scope
// bound as globals, and writes one response per request. The caller side
// (Client) multiplexes concurrent requests over a single connection,
// matching replies by correlation id. StartProcess launches the worker as a
// subprocess and returns a Client wired to its pipes.
package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// Response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Failure codes carried in ErrorPayload.Code and ChannelError.Code
const (
	CodeCompile     = "compile"
	CodeRuntime     = "runtime"
	CodeTimeout     = "timeout"
	CodeUnavailable = "unavailable"
	CodeProtocol    = "protocol"
)

// Request asks the worker to run Code with Scope bound as globals
type Request struct {
	ID    string                 `json:"id"`
	Code  string                 `json:"code"`
	Scope map[string]interface{} `json:"scope,omitempty"`
}

// Response is the tagged result of one Request
type Response struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Value     interface{}   `json:"value,omitempty"`
	Undefined bool          `json:"undefined,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the structured failure of a Response
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result converts the response into a value or an error
func (r Response) Result() (interface{}, error) {
	switch r.Status {
	case StatusSuccess:
		if r.Undefined {
			return nil, ErrUndefined
		}
		return r.Value, nil
	case StatusError:
		if r.Error == nil {
			return nil, &ChannelError{Code: CodeProtocol, Message: "error response without payload"}
		}
		return nil, &ChannelError{Code: r.Error.Code, Message: r.Error.Message}
	default:
		return nil, &ChannelError{Code: CodeProtocol, Message: fmt.Sprintf("unknown status %q", r.Status)}
	}
}

func success(id string, value interface{}) Response {
	return Response{ID: id, Status: StatusSuccess, Value: value}
}

func failure(id, code, message string) Response {
	return Response{ID: id, Status: StatusError, Error: &ErrorPayload{Code: code, Message: message}}
}

// ErrUndefined is returned when the script completed without a value
var ErrUndefined = errors.New("sandbox: result is undefined")

// ChannelError is a failure reported by, or about, the execution channel
type ChannelError struct {
	Code    string
	Message string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("sandbox %s: %s", e.Code, e.Message)
}

// Executor runs code against a scope in isolation
type Executor interface {
	Execute(ctx context.Context, code string, scope map[string]interface{}) (interface{}, error)
}

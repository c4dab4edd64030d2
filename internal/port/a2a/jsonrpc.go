package a2a

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC method names of the A2A protocol surface AgentMesh speaks.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
)

// JSON-RPC error codes. The -32000 range carries A2A-specific errors.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeTaskNotFound         = -32001
	CodeUnsupportedOperation = -32004
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with a string id and marshaled params.
func NewRequest(id, method string, params any) (*Request, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal id: %w", err)
	}
	return &Request{
		JSONRPC: "2.0",
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}, nil
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// DecodeSendResult extracts the Message-or-Task union from a message/send
// response. An error envelope is returned as the *RPCError itself.
func (r *Response) DecodeSendResult() (SendResult, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if len(r.Result) == 0 {
		return nil, fmt.Errorf("response carries neither result nor error")
	}
	return decodeResult(r.Result)
}

// DecodeEvent extracts a stream event from a message/stream response frame.
func (r *Response) DecodeEvent() (Event, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if len(r.Result) == 0 {
		return nil, fmt.Errorf("stream frame carries neither result nor error")
	}
	return DecodeEvent(r.Result)
}

// NewResultResponse builds a success response mirroring the request id.
func NewResultResponse(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response mirroring the request id.
func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// RPCError is a JSON-RPC error object. It implements error so protocol
// failures can travel through normal Go error paths.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

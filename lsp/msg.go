/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package lsp holds the client-side JSON-RPC 2.0 message model for talking
// to language servers over stdio, framed with Content-Length headers.
package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MethodExit is the notification that terminates the server session.
const MethodExit = "exit"

// Message is one JSON-RPC message: *Request, *Response or *Notification.
type Message interface {
	IsExit() bool
}

// Request is an identified call expecting a Response with the same id.
type Request struct {
	ID     uint64
	Method string
	Params json.RawMessage
}

// Response answers the Request with matching ID. Exactly one of Result and
// Error is meaningful.
type Response struct {
	ID     uint64
	Result json.RawMessage
	Error  *ResponseError
}

// ResponseError is the error member of a JSON-RPC response.
type ResponseError struct {
	Code    int32           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Notification is a method call with no reply.
type Notification struct {
	Method string
	Params json.RawMessage
}

// IsExit always reports false: requests never end the session.
func (r *Request) IsExit() bool { return false }

// IsExit always reports false.
func (r *Response) IsExit() bool { return false }

// IsExit reports whether this is the exit notification.
func (n *Notification) IsExit() bool { return n.Method == MethodExit }

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// NewRequest builds a Request, marshalling params to JSON.
func NewRequest(id uint64, method string, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a Notification, marshalling params to JSON.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Notification{Method: method, Params: raw}, nil
}

// wireMessage is the on-the-wire JSON object shared by all three variants.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// Codec frames JSON-RPC messages with Content-Length headers, per the LSP
// base protocol. It is stateless; one instance per rpc.Client.
type Codec struct{}

// Read decodes the next framed message. It returns io.EOF at a clean end
// of stream.
func (Codec) Read(r *bufio.Reader) (Message, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && contentLength < 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("parse Content-Length: %w", err)
			}
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return classify(body)
}

// classify decides the message variant by the presence of id, method,
// result and error members.
func classify(body []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch {
	case wire.Method != "" && wire.ID != nil:
		return &Request{ID: *wire.ID, Method: wire.Method, Params: wire.Params}, nil
	case wire.Method != "":
		return &Notification{Method: wire.Method, Params: wire.Params}, nil
	case wire.ID != nil:
		return &Response{ID: *wire.ID, Result: wire.Result, Error: wire.Error}, nil
	default:
		return nil, fmt.Errorf("message is neither request, response nor notification: %s", body)
	}
}

// Write encodes one framed message. The rpc client flushes after each frame.
func (Codec) Write(w *bufio.Writer, msg Message) error {
	var wire wireMessage
	wire.JSONRPC = "2.0"
	switch m := msg.(type) {
	case *Request:
		id := m.ID
		wire.ID = &id
		wire.Method = m.Method
		wire.Params = m.Params
	case *Notification:
		wire.Method = m.Method
		wire.Params = m.Params
	case *Response:
		id := m.ID
		wire.ID = &id
		wire.Result = m.Result
		wire.Error = m.Error
	default:
		return fmt.Errorf("unknown message type %T", msg)
	}

	body, err := json.Marshal(&wire)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// CastResponse decodes a response result into the request's result type.
func CastResponse[R any](resp *Response) (R, error) {
	var result R
	if resp.Error != nil {
		return result, resp.Error
	}
	if len(resp.Result) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return result, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

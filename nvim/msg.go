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

// Package nvim is the Neovim editor adapter: the msgpack-rpc message
// codec, the response correlator, and the editor capability set the
// broker drives.
package nvim

import (
	"bufio"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// msgpack-rpc message tags.
const (
	tagRequest      = 0
	tagResponse     = 1
	tagNotification = 2
)

// Buffer is a Neovim buffer handle. On the wire it is EXT type 0 whose
// payload is a msgpack-encoded integer.
type Buffer int64

func init() {
	msgpack.RegisterExtDecoder(0, Buffer(0), decodeExtHandle)
}

// decodeExtHandle decodes a Neovim handle EXT payload into its int value.
func decodeExtHandle(d *msgpack.Decoder, v reflect.Value, extLen int) error {
	payload := make([]byte, extLen)
	if err := d.ReadFull(payload); err != nil {
		return fmt.Errorf("read ext payload: %w", err)
	}
	var handle int64
	if err := msgpack.Unmarshal(payload, &handle); err != nil {
		return fmt.Errorf("decode ext handle: %w", err)
	}
	v.SetInt(handle)
	return nil
}

// Message is one msgpack-rpc message: *Request, *Response or
// *Notification.
type Message interface {
	IsExit() bool
}

// Request is [0, msgid, method, params].
type Request struct {
	MsgID  uint64
	Method string
	Params []any
}

// Response is [1, msgid, error, result].
type Response struct {
	MsgID  uint64
	Error  any
	Result any
}

// Notification is [2, method, params].
type Notification struct {
	Method string
	Params []any
}

// IsExit always reports false.
func (r *Request) IsExit() bool { return false }

// IsExit always reports false.
func (r *Response) IsExit() bool { return false }

// IsExit reports whether this is the editor's exit notification.
func (n *Notification) IsExit() bool { return n.Method == "exit" }

// Codec encodes and decodes msgpack-rpc arrays. The encoding is
// self-delimiting, so there is no length header. One instance per
// rpc.Client: the decoder is only touched by the reader goroutine and the
// encoder by the writer goroutine.
type Codec struct {
	dec *msgpack.Decoder
	enc *msgpack.Encoder
}

// Read decodes the next message. io.EOF is returned unchanged at end of
// stream.
func (c *Codec) Read(r *bufio.Reader) (Message, error) {
	if c.dec == nil {
		c.dec = msgpack.NewDecoder(r)
	}

	length, err := c.dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	tag, err := c.dec.DecodeInt64()
	if err != nil {
		return nil, fmt.Errorf("decode message tag: %w", err)
	}

	switch tag {
	case tagRequest:
		if length != 4 {
			return nil, fmt.Errorf("request has %d elements, want 4", length)
		}
		msg := &Request{}
		if msg.MsgID, err = c.dec.DecodeUint64(); err != nil {
			return nil, fmt.Errorf("decode request id: %w", err)
		}
		if msg.Method, err = c.dec.DecodeString(); err != nil {
			return nil, fmt.Errorf("decode request method: %w", err)
		}
		if msg.Params, err = c.dec.DecodeSlice(); err != nil {
			return nil, fmt.Errorf("decode request params: %w", err)
		}
		return msg, nil

	case tagResponse:
		if length != 4 {
			return nil, fmt.Errorf("response has %d elements, want 4", length)
		}
		msg := &Response{}
		if msg.MsgID, err = c.dec.DecodeUint64(); err != nil {
			return nil, fmt.Errorf("decode response id: %w", err)
		}
		if msg.Error, err = c.dec.DecodeInterfaceLoose(); err != nil {
			return nil, fmt.Errorf("decode response error: %w", err)
		}
		if msg.Result, err = c.dec.DecodeInterfaceLoose(); err != nil {
			return nil, fmt.Errorf("decode response result: %w", err)
		}
		return msg, nil

	case tagNotification:
		if length != 3 {
			return nil, fmt.Errorf("notification has %d elements, want 3", length)
		}
		msg := &Notification{}
		if msg.Method, err = c.dec.DecodeString(); err != nil {
			return nil, fmt.Errorf("decode notification method: %w", err)
		}
		if msg.Params, err = c.dec.DecodeSlice(); err != nil {
			return nil, fmt.Errorf("decode notification params: %w", err)
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("invalid message tag %d", tag)
	}
}

// Write encodes one message. The rpc client flushes after each frame.
func (c *Codec) Write(w *bufio.Writer, msg Message) error {
	if c.enc == nil {
		c.enc = msgpack.NewEncoder(w)
	}

	switch m := msg.(type) {
	case *Request:
		return c.writeSeq(tagRequest, m.MsgID, m.Method, m.Params)
	case *Response:
		if err := c.writeHead(4, tagResponse); err != nil {
			return err
		}
		if err := c.enc.EncodeUint(m.MsgID); err != nil {
			return err
		}
		if err := c.enc.Encode(m.Error); err != nil {
			return err
		}
		return c.enc.Encode(m.Result)
	case *Notification:
		if err := c.writeHead(3, tagNotification); err != nil {
			return err
		}
		if err := c.enc.EncodeString(m.Method); err != nil {
			return err
		}
		return c.writeParams(m.Params)
	default:
		return fmt.Errorf("unknown message type %T", msg)
	}
}

func (c *Codec) writeHead(length int, tag int64) error {
	if err := c.enc.EncodeArrayLen(length); err != nil {
		return err
	}
	return c.enc.EncodeInt(tag)
}

func (c *Codec) writeSeq(tag int64, msgid uint64, method string, params []any) error {
	if err := c.writeHead(4, tag); err != nil {
		return err
	}
	if err := c.enc.EncodeUint(msgid); err != nil {
		return err
	}
	if err := c.enc.EncodeString(method); err != nil {
		return err
	}
	return c.writeParams(params)
}

func (c *Codec) writeParams(params []any) error {
	if err := c.enc.EncodeArrayLen(len(params)); err != nil {
		return err
	}
	for _, param := range params {
		if err := c.enc.Encode(param); err != nil {
			return err
		}
	}
	return nil
}

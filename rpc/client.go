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
package rpc

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"bennypowers.dev/lspc/internal/logging"
)

// ErrClosed is returned by Send after the writer has terminated.
var ErrClosed = errors.New("rpc: connection closed")

// channelCapacity bounds both mailboxes. Producers block when the outbound
// queue is full, which is the system's backpressure mechanism.
const channelCapacity = 16

// Message is one framed unit on the wire. Implementations are the peer
// message models (JSON-RPC for language servers, msgpack-rpc for the editor).
type Message interface {
	// IsExit reports whether this message ends the session; the reader
	// terminates after delivering it.
	IsExit() bool
}

// Codec encodes and decodes framed messages for one peer kind. A Codec
// instance belongs to a single Client: Read is only ever called from the
// reader goroutine and Write from the writer goroutine, so implementations
// may keep per-direction state without locking.
type Codec[M Message] interface {
	Read(r *bufio.Reader) (M, error)
	Write(w *bufio.Writer, msg M) error
}

// Client multiplexes a byte stream onto typed message channels. It owns a
// reader goroutine and a writer goroutine; the rest of the program talks to
// it only through Inbound and Send.
type Client[M Message] struct {
	inbound  chan M
	outbound chan M

	// closed when the writer goroutine exits, so Send never blocks forever
	// on a dead peer.
	writerDone chan struct{}

	// closed by Close to stop the writer.
	quit chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	readErr  error
	writeErr error
}

// NewClient spawns the reader and writer tasks over the given stream pair.
// The reader runs until EOF, a decode error, or an exit message; it then
// closes the inbound channel, which the broker observes as disconnection.
func NewClient[M Message](codec Codec[M], r io.Reader, w io.Writer) *Client[M] {
	c := &Client[M]{
		inbound:    make(chan M, channelCapacity),
		outbound:   make(chan M, channelCapacity),
		writerDone: make(chan struct{}),
		quit:       make(chan struct{}),
	}

	go c.writeLoop(codec, bufio.NewWriter(w))
	go c.readLoop(codec, bufio.NewReader(r))

	return c
}

// Inbound returns the channel of decoded peer messages. The channel is
// closed when the peer disconnects or the codec fails.
func (c *Client[M]) Inbound() <-chan M {
	return c.inbound
}

// Send enqueues a message for the writer. It blocks while the outbound
// queue is full and returns ErrClosed once the writer has terminated.
func (c *Client[M]) Send(msg M) error {
	select {
	case <-c.quit:
		return ErrClosed
	case <-c.writerDone:
		return ErrClosed
	default:
	}
	select {
	case c.outbound <- msg:
		return nil
	case <-c.quit:
		return ErrClosed
	case <-c.writerDone:
		return ErrClosed
	}
}

// Close stops the writer once its queue drains. The reader stops on its
// own when the peer closes its end of the stream.
func (c *Client[M]) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}

// Err returns the first reader or writer error observed, if any.
func (c *Client[M]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return c.writeErr
}

func (c *Client[M]) writeLoop(codec Codec[M], w *bufio.Writer) {
	defer close(c.writerDone)
	for {
		var msg M
		select {
		case msg = <-c.outbound:
		case <-c.quit:
			// drain what was already queued, then stop
			select {
			case msg = <-c.outbound:
			default:
				return
			}
		}
		if err := codec.Write(w, msg); err != nil {
			c.setWriteErr(err)
			logging.Error("rpc: write failed: %v", err)
			return
		}
		if err := w.Flush(); err != nil {
			c.setWriteErr(err)
			logging.Error("rpc: flush failed: %v", err)
			return
		}
	}
}

func (c *Client[M]) readLoop(codec Codec[M], r *bufio.Reader) {
	defer close(c.inbound)
	for {
		msg, err := codec.Read(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.setReadErr(err)
				logging.Error("rpc: read failed: %v", err)
			}
			return
		}

		isExit := msg.IsExit()
		c.inbound <- msg
		if isExit {
			return
		}
	}
}

func (c *Client[M]) setReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *Client[M]) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr == nil {
		c.writeErr = err
	}
}

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
package nvim

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bennypowers.dev/lspc/internal/logging"
	"bennypowers.dev/lspc/lsp"
	"bennypowers.dev/lspc/lspc"
	"bennypowers.dev/lspc/rpc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// requestTimeout caps how long the broker waits for an editor response.
const requestTimeout = 60 * time.Second

const hoverBufferName = "lspc://hover"

// subscription registers one awaited response with the pump.
type subscription struct {
	id    uint64
	reply chan *Response
}

// Nvim drives a parent Neovim over msgpack-rpc and implements
// lspc.Editor. Outgoing requests are correlated with responses by the
// pump goroutine while unrelated traffic flows on as broker events.
type Nvim struct {
	client *rpc.Client[Message]
	nextID atomic.Uint64

	subscriptions chan subscription
	events        chan lspc.Event

	namespaceOnce sync.Once
	namespace     int64
}

// New attaches to the editor over the given stream pair (normally the
// process's own stdin and stdout) and starts the correlator pump.
func New(r io.Reader, w io.Writer) *Nvim {
	n := &Nvim{
		client:        rpc.NewClient[Message](&Codec{}, r, w),
		subscriptions: make(chan subscription, 16),
		events:        make(chan lspc.Event, 16),
	}
	go n.pump()
	return n
}

// pump consumes the editor's inbound stream: responses are delivered to
// their subscription, everything else becomes an Event for the broker
// loop. It closes the event channel when the editor disconnects.
func (n *Nvim) pump() {
	defer close(n.events)
	var pending []subscription

	for msg := range n.client.Inbound() {
		switch m := msg.(type) {
		case *Response:
			pending = n.deliver(pending, m)
		case *Request:
			logging.Warning("ignoring editor request %s", m.Method)
		case *Notification:
			event, err := toEvent(m)
			if err != nil {
				logging.Warning("bad editor command %s: %v", m.Method, err)
				continue
			}
			if event == nil {
				continue
			}
			n.events <- event
		}
	}
}

// deliver routes one response to its awaiting subscription. Stale or
// unknown responses are logged and dropped.
func (n *Nvim) deliver(pending []subscription, resp *Response) []subscription {
	for {
		select {
		case sub := <-n.subscriptions:
			pending = append(pending, sub)
			continue
		default:
		}
		break
	}

	for i, sub := range pending {
		if sub.id == resp.MsgID {
			sub.reply <- resp
			last := len(pending) - 1
			pending[i] = pending[last]
			return pending[:last]
		}
	}
	logging.Warning("dropping response %d with no awaiter", resp.MsgID)
	return pending
}

// Events returns the stream of decoded editor commands.
func (n *Nvim) Events() <-chan lspc.Event {
	return n.events
}

// Capabilities returns the client capability set sent with initialize.
func (n *Nvim) Capabilities() protocol.ClientCapabilities {
	return protocol.ClientCapabilities{}
}

// request sends one identified call and waits for its response, up to the
// timeout. A late response still lands in the one-slot reply buffer, where
// nothing reads it any more.
func (n *Nvim) request(method string, params ...any) (*Response, error) {
	id := n.nextID.Add(1)
	reply := make(chan *Response, 1)

	select {
	case n.subscriptions <- subscription{id: id, reply: reply}:
	case <-time.After(requestTimeout):
		return nil, lspc.NewEditorError(lspc.EditorTimeout, method)
	}

	if params == nil {
		params = []any{}
	}
	if err := n.client.Send(&Request{MsgID: id, Method: method, Params: params}); err != nil {
		return nil, &lspc.EditorError{Kind: lspc.EditorFailed, Detail: method, Err: err}
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-time.After(requestTimeout):
		return nil, lspc.NewEditorError(lspc.EditorTimeout, method)
	}
}

// call performs a request and unwraps the msgpack-rpc error slot.
func (n *Nvim) call(method string, params ...any) (any, error) {
	resp, err := n.request(method, params...)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, lspc.NewEditorError(lspc.EditorFailed, fmt.Sprintf("%s: %v", method, resp.Error))
	}
	return resp.Result, nil
}

func (n *Nvim) command(cmd string) error {
	_, err := n.call("nvim_command", cmd)
	return err
}

func (n *Nvim) callFunction(fn string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	return n.call("nvim_call_function", fn, args)
}

// SayHello answers the hello smoke command.
func (n *Nvim) SayHello() error {
	return n.command("echo 'hello from the other side'")
}

// Message shows a line in the message area.
func (n *Nvim) Message(text string) error {
	return n.command(fmt.Sprintf("echom '%s'", vimEscape(text)))
}

// ShowHover renders hover contents in the preview window.
func (n *Nvim) ShowHover(doc protocol.TextDocumentIdentifier, hover *protocol.Hover) error {
	lines := hoverLines(hover.Contents)
	if len(lines) == 0 {
		return nil
	}

	if err := n.command("silent! pedit +setlocal\\ buftype=nofile\\ nobuflisted " + hoverBufferName); err != nil {
		return err
	}
	buf, err := n.bufnr(hoverBufferName)
	if err != nil {
		return err
	}
	return n.setBufLines(buf, lines)
}

// InlineHints renders type hints as virtual text at the end of their
// lines.
func (n *Nvim) InlineHints(doc protocol.TextDocumentIdentifier, hints []lsp.InlayHint) error {
	buf, err := n.bufnr(lspc.URIToPath(doc.URI))
	if err != nil {
		return err
	}
	namespace, err := n.namespaceID()
	if err != nil {
		return err
	}

	if _, err := n.call("nvim_buf_clear_namespace", buf, namespace, 0, -1); err != nil {
		return err
	}
	for _, hint := range hints {
		if hint.Kind != lsp.InlayKindTypeHint {
			continue
		}
		chunks := []any{[]any{": " + hint.Label, "Comment"}}
		if _, err := n.call("nvim_buf_set_virtual_text",
			buf, namespace, int64(hint.Range.End.Line), chunks, map[string]any{}); err != nil {
			return err
		}
	}
	return nil
}

// ShowMessage forwards a server window/showMessage to the message area.
func (n *Nvim) ShowMessage(params *protocol.ShowMessageParams) error {
	var prefix string
	switch params.Type {
	case protocol.MessageTypeError:
		prefix = "[LS-ERROR] "
	case protocol.MessageTypeWarning:
		prefix = "[LS-WARNING] "
	default:
		prefix = "[LS] "
	}
	return n.Message(prefix + params.Message)
}

// ShowReferences fills the quickfix list and opens it.
func (n *Nvim) ShowReferences(locations []protocol.Location) error {
	items := make([]any, len(locations))
	for i, location := range locations {
		items[i] = map[string]any{
			"filename": lspc.URIToPath(location.URI),
			"lnum":     int64(location.Range.Start.Line) + 1,
			"col":      int64(location.Range.Start.Character) + 1,
			"text":     "",
		}
	}
	if _, err := n.callFunction("setqflist", items); err != nil {
		return err
	}
	return n.command("copen")
}

// ShowDiagnostics fills the location list for the document's window.
func (n *Nvim) ShowDiagnostics(doc protocol.TextDocumentIdentifier, diagnostics []protocol.Diagnostic) error {
	items := make([]any, len(diagnostics))
	for i, diagnostic := range diagnostics {
		items[i] = map[string]any{
			"filename": lspc.URIToPath(doc.URI),
			"lnum":     int64(diagnostic.Range.Start.Line) + 1,
			"col":      int64(diagnostic.Range.Start.Character) + 1,
			"text":     diagnostic.Message,
		}
	}
	_, err := n.callFunction("setloclist", int64(0), items)
	return err
}

// Goto jumps to a location, opening its file if needed.
func (n *Nvim) Goto(location protocol.Location) error {
	return n.command(fmt.Sprintf("edit +call\\ cursor(%d,%d) %s",
		location.Range.Start.Line+1,
		location.Range.Start.Character+1,
		lspc.URIToPath(location.URI)))
}

// ApplyEdits splices formatting edits into the buffer content and writes
// the result back.
func (n *Nvim) ApplyEdits(doc protocol.TextDocumentIdentifier, lines []string, edits []protocol.TextEdit) error {
	buf, err := n.bufnr(lspc.URIToPath(doc.URI))
	if err != nil {
		return err
	}
	return n.setBufLines(buf, lspc.ApplyEdits(lines, edits))
}

// TrackAllBuffers re-announces every listed, named buffer as a DidOpen
// event so a freshly started server learns about files opened before it.
func (n *Nvim) TrackAllBuffers() error {
	result, err := n.callFunction("getbufinfo", map[string]any{"buflisted": int64(1)})
	if err != nil {
		return err
	}
	infos, ok := result.([]any)
	if !ok {
		return lspc.NewEditorError(lspc.EditorUnexpectedResponse, fmt.Sprintf("getbufinfo returned %T", result))
	}

	var opened []lspc.Event
	for _, info := range infos {
		entry, ok := asStrKeyMap(info)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		bufnr, okN := asInt64(entry["bufnr"])
		if name == "" || !okN {
			continue
		}
		opened = append(opened, lspc.EventDidOpen{BufID: lspc.BufferID(bufnr), Path: name})
	}

	// injected from a broker callback; feed the queue from the side so a
	// full channel cannot deadlock the loop that drains it
	go func() {
		for _, event := range opened {
			n.events <- event
		}
	}()
	return nil
}

// WatchFileEvents attaches to the buffer's line events. send_buffer is
// true so the first event carries the full text.
func (n *Nvim) WatchFileEvents(buf lspc.BufferID) error {
	_, err := n.call("nvim_buf_attach", int64(buf), true, map[string]any{})
	return err
}

func (n *Nvim) bufnr(name string) (int64, error) {
	result, err := n.callFunction("bufnr", name)
	if err != nil {
		return 0, err
	}
	buf, ok := asInt64(result)
	if !ok || buf < 0 {
		return 0, lspc.NewEditorError(lspc.EditorUnexpectedResponse, fmt.Sprintf("bufnr(%s) = %v", name, result))
	}
	return buf, nil
}

func (n *Nvim) setBufLines(buf int64, lines []string) error {
	items := make([]any, len(lines))
	for i, line := range lines {
		items[i] = line
	}
	_, err := n.call("nvim_buf_set_lines", buf, 0, -1, false, items)
	return err
}

func (n *Nvim) namespaceID() (int64, error) {
	var err error
	n.namespaceOnce.Do(func() {
		var result any
		result, err = n.call("nvim_create_namespace", "lspc")
		if err != nil {
			return
		}
		namespace, ok := asInt64(result)
		if !ok {
			err = lspc.NewEditorError(lspc.EditorUnexpectedResponse, fmt.Sprintf("nvim_create_namespace = %v", result))
			return
		}
		n.namespace = namespace
	})
	return n.namespace, err
}

func vimEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// hoverLines flattens the hover contents union (MarkedString,
// MarkedString[], MarkupContent) into display lines.
func hoverLines(contents any) []string {
	switch c := contents.(type) {
	case string:
		return strings.Split(c, "\n")
	case []any:
		var lines []string
		for _, item := range c {
			lines = append(lines, hoverLines(item)...)
		}
		return lines
	case map[string]any:
		if value, ok := c["value"].(string); ok {
			return strings.Split(value, "\n")
		}
		return nil
	case protocol.MarkupContent:
		return strings.Split(c.Value, "\n")
	default:
		return nil
	}
}

func asStrKeyMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for key, value := range m {
			s, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[s] = value
		}
		return out, true
	}
	return nil, false
}

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

// Package lspc is the broker core: it multiplexes editor events, language
// server messages and a periodic timer onto a single event loop that owns
// all broker state.
package lspc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"bennypowers.dev/lspc/internal/logging"
	"bennypowers.dev/lspc/lsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// TimerTick is the period of the broker's sync timer. It must stay at or
// below a quarter of SyncDelay for the debounce bound to hold.
const TimerTick = 100 * time.Millisecond

// Broker routes editor commands to language servers and server results
// back to editor calls. All state is owned by the single Run loop;
// transports talk to it only through their bounded channels.
type Broker struct {
	editor        Editor
	handlers      []*Handler
	trackingFiles map[protocol.DocumentUri]*TrackingFile
	bufferFiles   map[BufferID]protocol.DocumentUri
	nextHandlerID uint64
}

// New builds a broker borrowing the given editor adapter for the lifetime
// of the loop.
func New(editor Editor) *Broker {
	return &Broker{
		editor:        editor,
		trackingFiles: make(map[protocol.DocumentUri]*TrackingFile),
		bufferFiles:   make(map[BufferID]protocol.DocumentUri),
	}
}

// Run blocks on whichever source is ready: editor events, any handler's
// inbound stream, or the timer tick. It returns when the editor's event
// channel closes. Handler errors are logged and the loop continues.
func (b *Broker) Run() error {
	events := b.editor.Events()
	ticker := time.NewTicker(TimerTick)
	defer ticker.Stop()

	for {
		// the case list tracks the current handler set, so it is rebuilt
		// each iteration; O(handlers) per select is fine at this scale
		cases := make([]reflect.SelectCase, 0, len(b.handlers)+2)
		cases = append(cases, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(events),
		})
		cases = append(cases, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ticker.C),
		})
		for _, h := range b.handlers {
			cases = append(cases, reflect.SelectCase{
				Dir: reflect.SelectRecv, Chan: reflect.ValueOf(h.Receiver()),
			})
		}

		chosen, received, ok := reflect.Select(cases)
		switch chosen {
		case 0:
			if !ok {
				logging.Info("editor disconnected, stopping")
				return nil
			}
			b.logOutcome(b.handleEditorEvent(received.Interface().(Event)))
		case 1:
			b.logOutcome(b.handleTick(received.Interface().(time.Time)))
		default:
			handler := b.handlers[chosen-2]
			if !ok {
				b.removeHandler(handler)
				continue
			}
			b.logOutcome(b.handleLangServerMessage(handler, received.Interface().(lsp.Message)))
		}
	}
}

func (b *Broker) logOutcome(err error) {
	switch {
	case err == nil:
	case IsIgnoredMessage(err):
		logging.Info("%v", err)
	default:
		logging.Error("handle error: %v", err)
	}
}

func (b *Broker) handlerByID(id uint64) (*Handler, bool) {
	for _, h := range b.handlers {
		if h.ID == id {
			return h, true
		}
	}
	return nil, false
}

// handlerForPath picks the handler covering an absolute file path: the
// tracking file's owner when the file is tracked, else the first handler
// whose root contains the path.
func (b *Broker) handlerForPath(path string) (*Handler, bool) {
	if tf, ok := b.trackingFiles[protocol.DocumentUri(PathToURI(path))]; ok {
		if h, ok := b.handlerByID(tf.HandlerID); ok {
			return h, true
		}
	}
	for _, h := range b.handlers {
		if h.IncludeFile(path) {
			return h, true
		}
	}
	return nil, false
}

// removeHandler drops a disconnected handler and every tracking file it
// owned.
func (b *Broker) removeHandler(handler *Handler) {
	logging.Warning("%s disconnected, removing", handler)
	for i, h := range b.handlers {
		if h == handler {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			break
		}
	}
	for uri, tf := range b.trackingFiles {
		if tf.HandlerID == handler.ID {
			delete(b.trackingFiles, uri)
		}
	}
	for buf, uri := range b.bufferFiles {
		if _, ok := b.trackingFiles[uri]; !ok {
			delete(b.bufferFiles, buf)
		}
	}
	handler.client.Close()
}

func (b *Broker) handleEditorEvent(event Event) error {
	switch ev := event.(type) {
	case EventHello:
		return b.editor.SayHello()
	case EventStartServer:
		return b.handleStartServer(ev)
	case EventHover:
		return b.handleHover(ev)
	case EventGotoDefinition:
		return b.handleGotoDefinition(ev)
	case EventInlayHints:
		return b.handleInlayHints(ev)
	case EventFormatDoc:
		return b.handleFormatDoc(ev)
	case EventReferences:
		return b.handleReferences(ev)
	case EventDidOpen:
		return b.handleDidOpen(ev)
	case EventDidChange:
		return b.handleDidChange(ev)
	case EventDidClose:
		return b.handleDidClose(ev)
	default:
		return &IgnoredMessageError{Detail: fmt.Sprintf("unhandled event %T", event)}
	}
}

func (b *Broker) handleStartServer(ev EventStartServer) error {
	root, err := FindRootPath(ev.CurPath, ev.Config.RootMarkers)
	if err != nil {
		return err
	}

	handler, err := NewHandler(ev.LangID, ev.Config, root)
	if err != nil {
		return err
	}
	b.nextHandlerID++
	handler.ID = b.nextHandlerID
	b.handlers = append(b.handlers, handler)

	return handler.Initialize(root, b.editor.Capabilities(),
		func(editor Editor, h *Handler, result protocol.InitializeResult) error {
			logging.Debug("initialize response for %s", h.LangID)
			if err := h.InitializeResponse(result); err != nil {
				return err
			}
			if err := editor.Message("LangServer initialized"); err != nil {
				return err
			}
			return editor.TrackAllBuffers()
		})
}

func (b *Broker) handleHover(ev EventHover) error {
	handler, ok := b.handlerForPath(URIToPath(ev.TextDocument.URI))
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("hover for unhandled file %s", ev.TextDocument.URI)}
	}

	doc := ev.TextDocument
	params := protocol.TextDocumentPositionParams{
		TextDocument: doc,
		Position:     ev.Position,
	}
	return Request(handler, lsp.MethodHover, &params,
		func(editor Editor, h *Handler, hover *protocol.Hover) error {
			logging.Debug("hover response for %s", doc.URI)
			if hover == nil {
				return nil
			}
			return editor.ShowHover(doc, hover)
		})
}

func (b *Broker) handleGotoDefinition(ev EventGotoDefinition) error {
	handler, ok := b.handlerForPath(URIToPath(ev.TextDocument.URI))
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("goto definition for unhandled file %s", ev.TextDocument.URI)}
	}

	params := protocol.TextDocumentPositionParams{
		TextDocument: ev.TextDocument,
		Position:     ev.Position,
	}
	return Request(handler, lsp.MethodDefinition, &params,
		func(editor Editor, h *Handler, raw json.RawMessage) error {
			return gotoDefinitionResult(editor, raw)
		})
}

// gotoDefinitionResult jumps to a scalar or singleton location; a larger
// result set is handed to the reference list instead.
func gotoDefinitionResult(editor Editor, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var location protocol.Location
	if err := json.Unmarshal(raw, &location); err == nil && location.URI != "" {
		return editor.Goto(location)
	}

	var locations []protocol.Location
	if err := json.Unmarshal(raw, &locations); err != nil {
		return NewLangServerError(LangServerInvalidResponse, "definition result is neither Location nor []Location")
	}
	switch len(locations) {
	case 0:
		return nil
	case 1:
		return editor.Goto(locations[0])
	default:
		return editor.ShowReferences(locations)
	}
}

func (b *Broker) handleInlayHints(ev EventInlayHints) error {
	handler, ok := b.handlerForPath(URIToPath(ev.TextDocument.URI))
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("inlay hints for unhandled file %s", ev.TextDocument.URI)}
	}

	doc := ev.TextDocument
	params := lsp.InlayHintsParams{TextDocument: doc}
	return Request(handler, lsp.MethodInlayHints, &params,
		func(editor Editor, h *Handler, hints []lsp.InlayHint) error {
			return editor.InlineHints(doc, hints)
		})
}

func (b *Broker) handleFormatDoc(ev EventFormatDoc) error {
	handler, ok := b.handlerForPath(URIToPath(ev.TextDocument.URI))
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("format for unhandled file %s", ev.TextDocument.URI)}
	}

	doc := ev.TextDocument
	lines := ev.Lines
	settings := handler.Settings()
	params := lsp.FormattingParams{
		TextDocument: doc,
		Options: lsp.FormattingOptions{
			TabSize:      settings.Indentation,
			InsertSpaces: settings.IndentationWithSpace,
		},
	}
	return Request(handler, lsp.MethodFormatting, &params,
		func(editor Editor, h *Handler, edits []protocol.TextEdit) error {
			if len(edits) == 0 {
				return nil
			}
			return editor.ApplyEdits(doc, lines, edits)
		})
}

func (b *Broker) handleReferences(ev EventReferences) error {
	handler, ok := b.handlerForPath(URIToPath(ev.TextDocument.URI))
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("references for unhandled file %s", ev.TextDocument.URI)}
	}

	params := lsp.ReferenceParams{
		TextDocument: ev.TextDocument,
		Position:     ev.Position,
		Context:      lsp.ReferenceContext{IncludeDeclaration: ev.IncludeDeclaration},
	}
	return Request(handler, lsp.MethodReferences, &params,
		func(editor Editor, h *Handler, locations []protocol.Location) error {
			return editor.ShowReferences(locations)
		})
}

func (b *Broker) handleDidOpen(ev EventDidOpen) error {
	handler, ok := b.handlerForPath(ev.Path)
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("no server covers %s", ev.Path)}
	}

	uri := protocol.DocumentUri(PathToURI(ev.Path))
	if _, tracked := b.trackingFiles[uri]; tracked {
		return &IgnoredMessageError{Detail: fmt.Sprintf("%s already tracked", uri)}
	}

	b.trackingFiles[uri] = NewTrackingFile(handler.ID, uri, handler.SyncKind())
	b.bufferFiles[ev.BufID] = uri

	// the initial buffer-lines event after this subscription carries the
	// full text and triggers the didOpen notification
	return b.editor.WatchFileEvents(ev.BufID)
}

func (b *Broker) handleDidChange(ev EventDidChange) error {
	uri, ok := b.bufferFiles[ev.BufID]
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("change for untracked buffer %d", ev.BufID)}
	}
	tf, ok := b.trackingFiles[uri]
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("change for untracked file %s", uri)}
	}
	handler, ok := b.handlerByID(tf.HandlerID)
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("change for file %s with no handler", uri)}
	}

	tf.TrackChange(ev.Version, ev.Change)

	if !tf.SentDidOpen {
		return b.sendDidOpen(handler, tf, ev.Change)
	}
	if tf.HasPendingChanges() {
		tf.DelaySyncIn(SyncDelay)
	}
	return nil
}

// sendDidOpen emits the first didOpen for a file with its full current
// text: the shadow for full-sync servers, else the text of the initial
// whole-buffer change.
func (b *Broker) sendDidOpen(handler *Handler, tf *TrackingFile, change protocol.TextDocumentContentChangeEvent) error {
	text := change.Text
	if tf.SyncKind() == protocol.TextDocumentSyncKindFull {
		text = tf.FullText()
	}

	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        tf.URI,
			LanguageID: handler.LangID,
			Version:    protocol.Integer(tf.Version()),
			Text:       text,
		},
	}
	if err := handler.Notify(lsp.MethodDidOpen, &params); err != nil {
		return err
	}
	tf.SentDidOpen = true
	return nil
}

func (b *Broker) handleDidClose(ev EventDidClose) error {
	uri, ok := b.bufferFiles[ev.BufID]
	if !ok {
		return &IgnoredMessageError{Detail: fmt.Sprintf("close for untracked buffer %d", ev.BufID)}
	}
	tf := b.trackingFiles[uri]
	delete(b.bufferFiles, ev.BufID)
	delete(b.trackingFiles, uri)
	if tf == nil {
		return nil
	}

	handler, ok := b.handlerByID(tf.HandlerID)
	if !ok {
		return nil
	}

	// flush pending edits before the close so the server's view is current
	if tf.SentDidOpen {
		if params := tf.FetchPendingChanges(); params != nil {
			if err := handler.Notify(lsp.MethodDidChange, params); err != nil {
				return err
			}
		}
		params := protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		}
		return handler.Notify(lsp.MethodDidClose, &params)
	}
	return nil
}

// handleTick flushes every tracking file whose debounce deadline passed.
func (b *Broker) handleTick(now time.Time) error {
	var firstErr error
	for _, tf := range b.trackingFiles {
		if !tf.SyncDueAt(now) {
			continue
		}
		params := tf.FetchPendingChanges()
		if params == nil {
			continue
		}
		handler, ok := b.handlerByID(tf.HandlerID)
		if !ok {
			continue
		}
		if err := handler.Notify(lsp.MethodDidChange, params); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Broker) handleLangServerMessage(handler *Handler, msg lsp.Message) error {
	switch m := msg.(type) {
	case *lsp.Notification:
		return b.handleLangServerNotification(handler, m)
	case *lsp.Response:
		callback, ok := handler.CallbackFor(m.ID)
		if !ok {
			logging.Error("response %d from %s was not requested", m.ID, handler.LangID)
			return nil
		}
		return callback.Func(b.editor, handler, m)
	case *lsp.Request:
		// servers rarely request anything from this client set
		return &IgnoredMessageError{Detail: fmt.Sprintf("server request %s from %s", m.Method, handler.LangID)}
	default:
		return &IgnoredMessageError{Detail: fmt.Sprintf("unknown message %T", msg)}
	}
}

func (b *Broker) handleLangServerNotification(handler *Handler, note *lsp.Notification) error {
	switch note.Method {
	case lsp.MethodShowMessage:
		var params protocol.ShowMessageParams
		if err := json.Unmarshal(note.Params, &params); err != nil {
			return &LangServerError{Kind: LangServerInvalidNotification, Detail: note.Method, Err: err}
		}
		return b.editor.ShowMessage(&params)

	case lsp.MethodPublishDiagnostics:
		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(note.Params, &params); err != nil {
			return &LangServerError{Kind: LangServerInvalidNotification, Detail: note.Method, Err: err}
		}
		if _, tracked := b.trackingFiles[params.URI]; !tracked {
			return &IgnoredMessageError{Detail: fmt.Sprintf("diagnostics for untracked file %s", params.URI)}
		}
		doc := protocol.TextDocumentIdentifier{URI: params.URI}
		return b.editor.ShowDiagnostics(doc, params.Diagnostics)

	default:
		return &IgnoredMessageError{Detail: fmt.Sprintf("notification %s from %s", note.Method, handler.LangID)}
	}
}

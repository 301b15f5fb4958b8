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
package lspc

import (
	"bennypowers.dev/lspc/config"
	"bennypowers.dev/lspc/lsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// BufferID is the editor-supplied buffer handle. The broker treats it as
// opaque.
type BufferID int64

// Event is one editor-originated command, decoded by the editor adapter.
type Event interface {
	isEvent()
}

// EventHello is the end-to-end smoke command.
type EventHello struct{}

// EventStartServer asks the broker to spawn a language server for lang_id,
// resolving the project root upward from CurPath.
type EventStartServer struct {
	LangID  string
	Config  config.LsConfig
	CurPath string
}

// EventHover requests hover information at a position.
type EventHover struct {
	BufID        BufferID
	TextDocument protocol.TextDocumentIdentifier
	Position     protocol.Position
}

// EventGotoDefinition requests a jump to the definition under the cursor.
type EventGotoDefinition struct {
	BufID        BufferID
	TextDocument protocol.TextDocumentIdentifier
	Position     protocol.Position
}

// EventInlayHints requests inline type annotations for a document.
type EventInlayHints struct {
	BufID        BufferID
	TextDocument protocol.TextDocumentIdentifier
}

// EventFormatDoc requests whole-document formatting. Lines is the buffer
// content at request time, used to apply the returned edits.
type EventFormatDoc struct {
	BufID        BufferID
	TextDocument protocol.TextDocumentIdentifier
	Lines        []string
}

// EventReferences requests all references to the symbol under the cursor.
type EventReferences struct {
	BufID              BufferID
	TextDocument       protocol.TextDocumentIdentifier
	Position           protocol.Position
	IncludeDeclaration bool
}

// EventDidOpen reports a buffer newly opened in the editor.
type EventDidOpen struct {
	BufID BufferID
	Path  string
}

// EventDidChange carries one buffer-lines change from the editor stream. A
// nil change range means the event carries the whole buffer.
type EventDidChange struct {
	BufID   BufferID
	Version int64
	Change  protocol.TextDocumentContentChangeEvent
}

// EventDidClose reports a buffer detached in the editor.
type EventDidClose struct {
	BufID BufferID
}

func (EventHello) isEvent()          {}
func (EventStartServer) isEvent()    {}
func (EventHover) isEvent()          {}
func (EventGotoDefinition) isEvent() {}
func (EventInlayHints) isEvent()     {}
func (EventFormatDoc) isEvent()      {}
func (EventReferences) isEvent()     {}
func (EventDidOpen) isEvent()        {}
func (EventDidChange) isEvent()      {}
func (EventDidClose) isEvent()       {}

// Editor is the capability set the editor adapter provides to the broker.
// Implementations live outside the core (the nvim package); the broker
// borrows one for the lifetime of the loop.
type Editor interface {
	// Events is the stream the broker loop selects on. Closing it ends the
	// loop.
	Events() <-chan Event

	// Capabilities returns the client capabilities sent with initialize.
	Capabilities() protocol.ClientCapabilities

	SayHello() error
	Message(text string) error
	ShowHover(doc protocol.TextDocumentIdentifier, hover *protocol.Hover) error
	InlineHints(doc protocol.TextDocumentIdentifier, hints []lsp.InlayHint) error
	ShowMessage(params *protocol.ShowMessageParams) error
	ShowReferences(locations []protocol.Location) error
	ShowDiagnostics(doc protocol.TextDocumentIdentifier, diagnostics []protocol.Diagnostic) error
	Goto(location protocol.Location) error
	ApplyEdits(doc protocol.TextDocumentIdentifier, lines []string, edits []protocol.TextEdit) error

	// TrackAllBuffers asks the editor to re-announce already-open buffers
	// as DidOpen events.
	TrackAllBuffers() error

	// WatchFileEvents subscribes the broker to buffer-change notifications
	// for one buffer.
	WatchFileEvents(buf BufferID) error
}

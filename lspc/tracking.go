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
	"strings"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// SyncDelay is the debounce window for didChange emission.
const SyncDelay = 500 * time.Millisecond

// TrackingFile shadows one open editor buffer for one handler. It
// accumulates edits in whichever representation the server's sync kind
// requires and coalesces rapid edits behind a debounce timer.
type TrackingFile struct {
	HandlerID   uint64
	URI         protocol.DocumentUri
	SentDidOpen bool

	// zero while no sync is scheduled; set iff there are unsent changes.
	ScheduledSyncAt time.Time

	version  int64
	syncKind protocol.TextDocumentSyncKind

	// Incremental state: pending content changes in arrival order.
	pending []protocol.TextDocumentContentChangeEvent

	// Full state: the complete shadow text as lines.
	shadow []string
}

// NewTrackingFile builds the shadow for a newly opened buffer, choosing
// the storage variant from the owning handler's sync kind.
func NewTrackingFile(handlerID uint64, uri protocol.DocumentUri, syncKind protocol.TextDocumentSyncKind) *TrackingFile {
	return &TrackingFile{
		HandlerID: handlerID,
		URI:       uri,
		syncKind:  syncKind,
	}
}

// Version returns the last tracked document version.
func (t *TrackingFile) Version() int64 {
	return t.version
}

// SyncKind returns the storage variant in use.
func (t *TrackingFile) SyncKind() protocol.TextDocumentSyncKind {
	return t.syncKind
}

// TrackChange records one buffer change. The later version wins; the
// editor is trusted to supply monotonic versions.
func (t *TrackingFile) TrackChange(version int64, change protocol.TextDocumentContentChangeEvent) {
	t.version = version

	switch t.syncKind {
	case protocol.TextDocumentSyncKindNone:
		// server declines syncing

	case protocol.TextDocumentSyncKindIncremental:
		if change.Range == nil {
			// a rangeless change is a whole-buffer replacement and has no
			// incremental representation
			return
		}
		if last := len(t.pending) - 1; last >= 0 && rangesEqual(t.pending[last].Range, change.Range) {
			// rapid keystrokes in the same span supersede each other
			t.pending[last] = change
			return
		}
		t.pending = append(t.pending, change)

	case protocol.TextDocumentSyncKindFull:
		if change.Range == nil {
			t.shadow = splitLines(change.Text)
			return
		}
		start := int(change.Range.Start.Line)
		end := int(change.Range.End.Line)
		if start > len(t.shadow) {
			start = len(t.shadow)
		}
		if end > len(t.shadow) {
			end = len(t.shadow)
		}
		replaced := splitLines(change.Text)
		shadow := make([]string, 0, len(t.shadow)-(end-start)+len(replaced))
		shadow = append(shadow, t.shadow[:start]...)
		shadow = append(shadow, replaced...)
		shadow = append(shadow, t.shadow[end:]...)
		t.shadow = shadow
	}
}

// HasPendingChanges reports whether a fetch would emit anything.
func (t *TrackingFile) HasPendingChanges() bool {
	switch t.syncKind {
	case protocol.TextDocumentSyncKindIncremental:
		return len(t.pending) > 0
	case protocol.TextDocumentSyncKindFull:
		return true
	default:
		return false
	}
}

// FullText returns the complete shadow text. Only meaningful in the Full
// variant.
func (t *TrackingFile) FullText() string {
	return strings.Join(t.shadow, "\n")
}

// FetchPendingChanges drains the accumulated edits into a didChange
// payload, clearing the scheduled sync. It returns nil when nothing would
// be sent.
func (t *TrackingFile) FetchPendingChanges() *protocol.DidChangeTextDocumentParams {
	t.ScheduledSyncAt = time.Time{}

	params := &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: t.URI},
			Version:                protocol.Integer(t.version),
		},
	}

	switch t.syncKind {
	case protocol.TextDocumentSyncKindIncremental:
		if len(t.pending) == 0 {
			return nil
		}
		pending := t.pending
		t.pending = nil
		params.ContentChanges = make([]any, len(pending))
		for i, change := range pending {
			params.ContentChanges[i] = change
		}
		return params

	case protocol.TextDocumentSyncKindFull:
		params.ContentChanges = []any{
			protocol.TextDocumentContentChangeEvent{Text: t.FullText()},
		}
		return params

	default:
		return nil
	}
}

// DelaySyncIn schedules a sync d from now unless one is already pending.
// Leaving an existing schedule in place is what bounds emission under a
// sustained edit stream.
func (t *TrackingFile) DelaySyncIn(d time.Duration) {
	if t.ScheduledSyncAt.IsZero() {
		t.ScheduledSyncAt = time.Now().Add(d)
	}
}

// SyncDueAt reports whether a scheduled sync has come due.
func (t *TrackingFile) SyncDueAt(now time.Time) bool {
	return !t.ScheduledSyncAt.IsZero() && !t.ScheduledSyncAt.After(now)
}

func rangesEqual(a, b *protocol.Range) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Start == b.Start && a.End == b.End
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

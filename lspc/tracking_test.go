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
	"testing"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func change(startLine, endLine uint32, text string) protocol.TextDocumentContentChangeEvent {
	return protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{
			Start: protocol.Position{Line: startLine},
			End:   protocol.Position{Line: endLine},
		},
		Text: text,
	}
}

func wholeBuffer(text string) protocol.TextDocumentContentChangeEvent {
	return protocol.TextDocumentContentChangeEvent{Text: text}
}

func TestTrackingFile_IncrementalAccumulates(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindIncremental)

	tf.TrackChange(1, change(0, 1, "one"))
	tf.TrackChange(2, change(2, 3, "two"))
	tf.TrackChange(3, change(4, 5, "three"))

	params := tf.FetchPendingChanges()
	if params == nil {
		t.Fatal("expected pending changes")
	}
	if params.TextDocument.Version != 3 {
		t.Errorf("version = %d, want 3", params.TextDocument.Version)
	}
	if len(params.ContentChanges) != 3 {
		t.Errorf("content changes = %d, want 3", len(params.ContentChanges))
	}

	// the queue was swapped out; a second fetch has nothing to say
	if again := tf.FetchPendingChanges(); again != nil {
		t.Errorf("second fetch = %+v, want nil", again)
	}
}

func TestTrackingFile_IncrementalCoalescesSameRange(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindIncremental)

	// rapid keystrokes on the same span replace the queue tail in place
	tf.TrackChange(1, change(3, 4, "a"))
	tf.TrackChange(2, change(3, 4, "ab"))
	tf.TrackChange(3, change(3, 4, "abc"))

	params := tf.FetchPendingChanges()
	if params == nil {
		t.Fatal("expected pending changes")
	}
	if len(params.ContentChanges) != 1 {
		t.Fatalf("content changes = %d, want 1", len(params.ContentChanges))
	}
	got := params.ContentChanges[0].(protocol.TextDocumentContentChangeEvent)
	if got.Text != "abc" {
		t.Errorf("coalesced text = %q, want %q", got.Text, "abc")
	}
}

func TestTrackingFile_IncrementalIgnoresWholeBufferChange(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindIncremental)

	tf.TrackChange(1, wholeBuffer("entire content"))
	if params := tf.FetchPendingChanges(); params != nil {
		t.Errorf("fetch = %+v, want nil", params)
	}
}

func TestTrackingFile_FullShadowSplicing(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindFull)

	tf.TrackChange(1, wholeBuffer("one\ntwo\nthree"))
	// replace line 1 (exclusive end)
	tf.TrackChange(2, change(1, 2, "TWO"))

	if got := tf.FullText(); got != "one\nTWO\nthree" {
		t.Errorf("shadow = %q, want %q", got, "one\nTWO\nthree")
	}

	params := tf.FetchPendingChanges()
	if params == nil {
		t.Fatal("expected pending changes")
	}
	if len(params.ContentChanges) != 1 {
		t.Fatalf("content changes = %d, want 1", len(params.ContentChanges))
	}
	got := params.ContentChanges[0].(protocol.TextDocumentContentChangeEvent)
	if got.Range != nil {
		t.Error("full sync change must carry no range")
	}
	if got.Text != "one\nTWO\nthree" {
		t.Errorf("full sync text = %q", got.Text)
	}
}

func TestTrackingFile_FullOverlappingLineRanges(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindFull)

	tf.TrackChange(1, wholeBuffer("a\nb\nc\nd"))
	tf.TrackChange(2, change(0, 2, "A\nB"))
	tf.TrackChange(3, change(1, 3, "X\nY"))

	params := tf.FetchPendingChanges()
	if params == nil {
		t.Fatal("expected pending changes")
	}
	got := params.ContentChanges[0].(protocol.TextDocumentContentChangeEvent)
	if got.Text != tf.FullText() {
		t.Errorf("emitted text %q differs from shadow %q", got.Text, tf.FullText())
	}
	if params.TextDocument.Version != 3 {
		t.Errorf("version = %d, want 3", params.TextDocument.Version)
	}
}

func TestTrackingFile_NoneIgnoresEverything(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindNone)

	tf.TrackChange(1, change(0, 1, "x"))
	if tf.HasPendingChanges() {
		t.Error("None sync must never have pending changes")
	}
	if params := tf.FetchPendingChanges(); params != nil {
		t.Errorf("fetch = %+v, want nil", params)
	}
}

func TestTrackingFile_VersionMonotonic(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindIncremental)

	versions := []int64{1, 2, 2, 5, 9}
	last := int64(0)
	for _, v := range versions {
		tf.TrackChange(v, change(0, 1, "x"))
		if tf.Version() < last {
			t.Fatalf("version decreased: %d after %d", tf.Version(), last)
		}
		last = tf.Version()
	}
}

func TestTrackingFile_DelaySyncDoesNotResetOnKeystroke(t *testing.T) {
	tf := NewTrackingFile(1, "file:///p/f", protocol.TextDocumentSyncKindIncremental)

	tf.TrackChange(1, change(0, 1, "x"))
	tf.DelaySyncIn(SyncDelay)
	first := tf.ScheduledSyncAt
	if first.IsZero() {
		t.Fatal("expected a scheduled sync")
	}

	time.Sleep(5 * time.Millisecond)
	tf.TrackChange(2, change(1, 2, "y"))
	tf.DelaySyncIn(SyncDelay)
	if !tf.ScheduledSyncAt.Equal(first) {
		t.Error("a later keystroke must not push the deadline back")
	}

	if tf.SyncDueAt(first.Add(-time.Millisecond)) {
		t.Error("sync must not be due before the deadline")
	}
	if !tf.SyncDueAt(first) {
		t.Error("sync must be due at the deadline")
	}

	// fetching clears the schedule
	tf.FetchPendingChanges()
	if !tf.ScheduledSyncAt.IsZero() {
		t.Error("fetch must clear the scheduled sync")
	}
}

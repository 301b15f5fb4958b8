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
	"testing"

	"github.com/google/go-cmp/cmp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func edit(startLine, startChar, endLine, endChar uint32, text string) protocol.TextEdit {
	return protocol.TextEdit{
		Range: protocol.Range{
			Start: protocol.Position{Line: startLine, Character: startChar},
			End:   protocol.Position{Line: endLine, Character: endChar},
		},
		NewText: text,
	}
}

func TestApplyEdits_Formatting(t *testing.T) {
	lines := []string{
		"fn   a() {",
		"  print!(\"hello\");",
		"}",
	}
	edits := []protocol.TextEdit{
		edit(0, 3, 0, 5, ""),
		edit(1, 0, 1, 0, "  "),
	}

	got := strings.Join(ApplyEdits(lines, edits), "\n")
	want := "fn a() {\n    print!(\"hello\");\n}"
	if got != want {
		t.Errorf("ApplyEdits = %q, want %q", got, want)
	}
}

func TestApplyEdits_EmptyEditsReturnInputVerbatim(t *testing.T) {
	lines := []string{"one", "two", "three"}
	got := ApplyEdits(lines, nil)
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Errorf("ApplyEdits with no edits changed input (-want +got):\n%s", diff)
	}
}

func TestApplyEdits_DisjointEditsOrderInvariant(t *testing.T) {
	lines := []string{"alpha beta", "gamma delta", "epsilon"}
	forward := []protocol.TextEdit{
		edit(0, 0, 0, 5, "ALPHA"),
		edit(1, 6, 1, 11, "DELTA"),
		edit(2, 0, 2, 0, ">> "),
	}
	backward := []protocol.TextEdit{forward[2], forward[0], forward[1]}

	got1 := ApplyEdits(lines, forward)
	got2 := ApplyEdits(lines, backward)
	if diff := cmp.Diff(got1, got2); diff != "" {
		t.Errorf("edit order changed the result (-forward +backward):\n%s", diff)
	}

	want := []string{"ALPHA beta", "gamma DELTA", ">> epsilon"}
	if diff := cmp.Diff(want, got1); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestApplyEdits_OverlappingEditSkipped(t *testing.T) {
	lines := []string{"abcdef"}
	edits := []protocol.TextEdit{
		edit(0, 0, 0, 4, "XY"),
		// overlaps the first edit's span; must be skipped, not applied
		edit(0, 2, 0, 6, "Z"),
	}

	got := strings.Join(ApplyEdits(lines, edits), "\n")
	// the later (rightmost) edit applies first; the earlier one then
	// overlaps the modified region and is dropped
	want := "abZ"
	if got != want {
		t.Errorf("ApplyEdits = %q, want %q", got, want)
	}
}

func TestApplyEdits_MultilineSplice(t *testing.T) {
	lines := []string{"first", "second", "third", "fourth"}
	edits := []protocol.TextEdit{
		edit(1, 0, 2, 5, "replaced"),
	}

	got := ApplyEdits(lines, edits)
	want := []string{"first", "replaced", "fourth"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

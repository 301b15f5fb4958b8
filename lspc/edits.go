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
	"sort"
	"strings"

	"bennypowers.dev/lspc/internal/logging"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ApplyEdits applies formatting edits to a document given as lines and
// returns the resulting lines. Edits are applied back-to-front so earlier
// offsets stay valid; overlapping edits are logged and skipped.
func ApplyEdits(lines []string, edits []protocol.TextEdit) []string {
	if len(edits) == 0 {
		return lines
	}

	sorted := make([]protocol.TextEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})

	buffer := strings.Join(lines, "\n")

	// offsets of each line start in the joined buffer; the +line term in
	// toOffset accounts for the joining newlines
	toOffset := func(pos protocol.Position) int {
		offset := 0
		for i := 0; i < int(pos.Line) && i < len(lines); i++ {
			offset += len(lines[i])
		}
		offset += int(pos.Line) + int(pos.Character)
		if offset > len(buffer) {
			offset = len(buffer)
		}
		return offset
	}

	lastModified := len(buffer)
	for i := len(sorted) - 1; i >= 0; i-- {
		edit := sorted[i]
		start := toOffset(edit.Range.Start)
		end := toOffset(edit.Range.End)
		if end > lastModified {
			logging.Warning("skipping overlapping edit at %d:%d", edit.Range.Start.Line, edit.Range.Start.Character)
			continue
		}
		buffer = buffer[:start] + edit.NewText + buffer[end:]
		lastModified = start
	}

	return strings.Split(buffer, "\n")
}

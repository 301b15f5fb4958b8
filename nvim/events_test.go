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
	"testing"

	"bennypowers.dev/lspc/lspc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestToEvent_Hello(t *testing.T) {
	event, err := toEvent(&Notification{Method: "hello"})
	require.NoError(t, err)
	assert.IsType(t, lspc.EventHello{}, event)
}

func TestToEvent_Hover(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "hover",
		Params: []any{
			Buffer(1),
			"/proj/src/a.rs",
			map[string]any{"line": int64(10), "character": int64(4)},
		},
	})
	require.NoError(t, err)

	hover, ok := event.(lspc.EventHover)
	require.True(t, ok, "event is %T", event)
	assert.Equal(t, lspc.BufferID(1), hover.BufID)
	assert.Equal(t, protocol.DocumentUri("file:///proj/src/a.rs"), hover.TextDocument.URI)
	assert.Equal(t, protocol.UInteger(10), hover.Position.Line)
	assert.Equal(t, protocol.UInteger(4), hover.Position.Character)
}

func TestToEvent_PositionAsList(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "goto_definition",
		Params: []any{int64(2), "/p/f.rs", []any{int64(3), int64(8)}},
	})
	require.NoError(t, err)

	def, ok := event.(lspc.EventGotoDefinition)
	require.True(t, ok, "event is %T", event)
	assert.Equal(t, protocol.UInteger(3), def.Position.Line)
	assert.Equal(t, protocol.UInteger(8), def.Position.Character)
}

func TestToEvent_StartServer(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "start_lang_server",
		Params: []any{
			"rust",
			map[string]any{
				"command":      []any{"rust-analyzer"},
				"root_markers": []any{"Cargo.toml"},
			},
			"/proj/src/main.rs",
		},
	})
	require.NoError(t, err)

	start, ok := event.(lspc.EventStartServer)
	require.True(t, ok, "event is %T", event)
	assert.Equal(t, "rust", start.LangID)
	assert.Equal(t, []string{"rust-analyzer"}, start.Config.Command)
	assert.Equal(t, []string{"Cargo.toml"}, start.Config.RootMarkers)
	assert.Equal(t, uint64(4), start.Config.Indentation)
	assert.Equal(t, "/proj/src/main.rs", start.CurPath)
}

func TestToEvent_References(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "references",
		Params: []any{
			int64(1), "/p/f.rs",
			map[string]any{"line": int64(0), "character": int64(0)},
			true,
		},
	})
	require.NoError(t, err)

	refs, ok := event.(lspc.EventReferences)
	require.True(t, ok, "event is %T", event)
	assert.True(t, refs.IncludeDeclaration)
}

func TestToEvent_BufLines(t *testing.T) {
	tests := []struct {
		name      string
		lastLine  int64
		wantRange *protocol.Range
		wantText  string
	}{
		{
			name:     "ranged change",
			lastLine: 6,
			wantRange: &protocol.Range{
				Start: protocol.Position{Line: 5},
				End:   protocol.Position{Line: 6},
			},
			wantText: "new line",
		},
		{
			name:      "whole buffer",
			lastLine:  -1,
			wantRange: nil,
			wantText:  "new line",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := toEvent(&Notification{
				Method: "nvim_buf_lines_event",
				Params: []any{
					Buffer(4), int64(12), int64(5), tt.lastLine,
					[]any{"new line"}, false,
				},
			})
			require.NoError(t, err)

			didChange, ok := event.(lspc.EventDidChange)
			require.True(t, ok, "event is %T", event)
			assert.Equal(t, lspc.BufferID(4), didChange.BufID)
			assert.Equal(t, int64(12), didChange.Version)
			assert.Equal(t, tt.wantRange, didChange.Change.Range)
			assert.Equal(t, tt.wantText, didChange.Change.Text)
		})
	}
}

func TestToEvent_ChangedtickIgnored(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "nvim_buf_changedtick_event",
		Params: []any{Buffer(4), int64(13)},
	})
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestToEvent_DetachBecomesDidClose(t *testing.T) {
	event, err := toEvent(&Notification{
		Method: "nvim_buf_detach_event",
		Params: []any{Buffer(4)},
	})
	require.NoError(t, err)

	closeEvent, ok := event.(lspc.EventDidClose)
	require.True(t, ok, "event is %T", event)
	assert.Equal(t, lspc.BufferID(4), closeEvent.BufID)
}

func TestToEvent_UnknownMethod(t *testing.T) {
	_, err := toEvent(&Notification{Method: "frobnicate"})
	assert.Error(t, err)
}

func TestToEvent_MissingArguments(t *testing.T) {
	_, err := toEvent(&Notification{Method: "hover", Params: []any{int64(1)}})
	require.Error(t, err)
	assert.True(t, lspc.IsEditorError(err, lspc.EditorCommandDataInvalid))
}

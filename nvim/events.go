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
	"strings"

	"bennypowers.dev/lspc/config"
	"bennypowers.dev/lspc/lspc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// toEvent converts one editor notification into a broker event. A nil
// event with nil error means the notification is deliberately ignored.
func toEvent(note *Notification) (lspc.Event, error) {
	args := arguments(note.Params)

	switch note.Method {
	case "hello":
		return lspc.EventHello{}, nil

	case "start_lang_server":
		langID, err := args.str(0)
		if err != nil {
			return nil, err
		}
		payload, err := args.strMap(1)
		if err != nil {
			return nil, err
		}
		curPath, err := args.str(2)
		if err != nil {
			return nil, err
		}
		cfg, err := config.Resolve(langID, payload)
		if err != nil {
			return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, err.Error())
		}
		return lspc.EventStartServer{LangID: langID, Config: cfg, CurPath: curPath}, nil

	case "hover":
		buf, doc, err := args.bufDoc()
		if err != nil {
			return nil, err
		}
		position, err := args.position(2)
		if err != nil {
			return nil, err
		}
		return lspc.EventHover{BufID: buf, TextDocument: doc, Position: position}, nil

	case "goto_definition":
		buf, doc, err := args.bufDoc()
		if err != nil {
			return nil, err
		}
		position, err := args.position(2)
		if err != nil {
			return nil, err
		}
		return lspc.EventGotoDefinition{BufID: buf, TextDocument: doc, Position: position}, nil

	case "inlay_hints":
		buf, doc, err := args.bufDoc()
		if err != nil {
			return nil, err
		}
		return lspc.EventInlayHints{BufID: buf, TextDocument: doc}, nil

	case "format_doc":
		buf, doc, err := args.bufDoc()
		if err != nil {
			return nil, err
		}
		lines, err := args.strSlice(2)
		if err != nil {
			return nil, err
		}
		return lspc.EventFormatDoc{BufID: buf, TextDocument: doc, Lines: lines}, nil

	case "references":
		buf, doc, err := args.bufDoc()
		if err != nil {
			return nil, err
		}
		position, err := args.position(2)
		if err != nil {
			return nil, err
		}
		includeDeclaration, err := args.boolean(3)
		if err != nil {
			return nil, err
		}
		return lspc.EventReferences{
			BufID:              buf,
			TextDocument:       doc,
			Position:           position,
			IncludeDeclaration: includeDeclaration,
		}, nil

	case "did_open":
		buf, err := args.buffer(0)
		if err != nil {
			return nil, err
		}
		path, err := args.str(1)
		if err != nil {
			return nil, err
		}
		return lspc.EventDidOpen{BufID: buf, Path: path}, nil

	case "did_close", "nvim_buf_detach_event":
		buf, err := args.buffer(0)
		if err != nil {
			return nil, err
		}
		return lspc.EventDidClose{BufID: buf}, nil

	case "nvim_buf_lines_event":
		return bufLinesEvent(args)

	case "nvim_buf_changedtick_event":
		return nil, nil

	default:
		return nil, lspc.NewEditorError(lspc.EditorUnexpectedMessage, note.Method)
	}
}

// bufLinesEvent decodes the buffer-lines stream:
// [buf, changedtick, firstline, lastline, linedata, more]. lastline of -1
// marks a whole-buffer payload, which maps to a rangeless change.
func bufLinesEvent(args arguments) (lspc.Event, error) {
	buf, err := args.buffer(0)
	if err != nil {
		return nil, err
	}
	version, err := args.integer(1)
	if err != nil {
		// changedtick is nil when untracked; the change then carries
		// version 0 and the previous version is not kept
		version = 0
	}
	firstLine, err := args.integer(2)
	if err != nil {
		return nil, err
	}
	lastLine, err := args.integer(3)
	if err != nil {
		return nil, err
	}
	lines, err := args.strSlice(4)
	if err != nil {
		return nil, err
	}

	change := protocol.TextDocumentContentChangeEvent{
		Text: strings.Join(lines, "\n"),
	}
	if lastLine >= 0 {
		change.Range = &protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(firstLine)},
			End:   protocol.Position{Line: protocol.UInteger(lastLine)},
		}
	}

	return lspc.EventDidChange{BufID: buf, Version: version, Change: change}, nil
}

// arguments wraps positional notification params with typed accessors.
type arguments []any

func (a arguments) at(i int) (any, error) {
	if i >= len(a) {
		return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("missing argument %d", i))
	}
	return a[i], nil
}

func (a arguments) str(i int) (string, error) {
	v, err := a.at(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want string", i, v))
	}
	return s, nil
}

func (a arguments) integer(i int) (int64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want integer", i, v))
	}
	return n, nil
}

func (a arguments) boolean(i int) (bool, error) {
	v, err := a.at(i)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		if n, ok := asInt64(v); ok {
			return n != 0, nil
		}
	}
	return false, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want bool", i, v))
}

func (a arguments) buffer(i int) (lspc.BufferID, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	if buf, ok := v.(Buffer); ok {
		return lspc.BufferID(buf), nil
	}
	if n, ok := asInt64(v); ok {
		return lspc.BufferID(n), nil
	}
	return 0, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want buffer", i, v))
}

func (a arguments) strSlice(i int) ([]string, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want string list", i, v))
	}
	out := make([]string, len(raw))
	for j, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d element %d is %T, want string", i, j, item))
		}
		out[j] = s
	}
	return out, nil
}

func (a arguments) strMap(i int) (map[string]any, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for key, value := range m {
			s, ok := key.(string)
			if !ok {
				return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d has non-string key %v", i, key))
			}
			out[s] = value
		}
		return out, nil
	}
	return nil, lspc.NewEditorError(lspc.EditorCommandDataInvalid, fmt.Sprintf("argument %d is %T, want map", i, v))
}

// position accepts either {"line": l, "character": c} or [l, c].
func (a arguments) position(i int) (protocol.Position, error) {
	var position protocol.Position
	v, err := a.at(i)
	if err != nil {
		return position, err
	}

	switch p := v.(type) {
	case []any:
		if len(p) != 2 {
			return position, lspc.NewEditorError(lspc.EditorCommandDataInvalid, "position list must have two elements")
		}
		line, okL := asInt64(p[0])
		character, okC := asInt64(p[1])
		if !okL || !okC {
			return position, lspc.NewEditorError(lspc.EditorCommandDataInvalid, "position list elements must be integers")
		}
		position.Line = protocol.UInteger(line)
		position.Character = protocol.UInteger(character)
		return position, nil
	default:
		m, err := a.strMap(i)
		if err != nil {
			return position, err
		}
		line, okL := asInt64(m["line"])
		character, okC := asInt64(m["character"])
		if !okL || !okC {
			return position, lspc.NewEditorError(lspc.EditorCommandDataInvalid, "position map needs integer line and character")
		}
		position.Line = protocol.UInteger(line)
		position.Character = protocol.UInteger(character)
		return position, nil
	}
}

// bufDoc reads the common (buf, path, ...) prefix into a buffer id and a
// text document identifier.
func (a arguments) bufDoc() (lspc.BufferID, protocol.TextDocumentIdentifier, error) {
	var doc protocol.TextDocumentIdentifier
	buf, err := a.buffer(0)
	if err != nil {
		return 0, doc, err
	}
	path, err := a.str(1)
	if err != nil {
		return 0, doc, err
	}
	doc.URI = protocol.DocumentUri(lspc.PathToURI(path))
	return buf, doc, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case Buffer:
		return int64(n), true
	default:
		return 0, false
	}
}

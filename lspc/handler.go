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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bennypowers.dev/lspc/config"
	"bennypowers.dev/lspc/internal/logging"
	"bennypowers.dev/lspc/lsp"
	"bennypowers.dev/lspc/rpc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// CallbackFunc consumes the response to one identified request. Callbacks
// run on the broker loop; they may issue follow-up RPCs through the editor
// or the handler but must not block.
type CallbackFunc func(editor Editor, handler *Handler, resp *lsp.Response) error

// Callback pairs a pending request id with its single-use completion.
type Callback struct {
	ID   uint64
	Func CallbackFunc
}

// Handler owns one running language server: its child process, transport,
// pending callbacks, advertised capabilities and project root. All fields
// are mutated only from the broker loop.
type Handler struct {
	ID       uint64
	LangID   string
	RootPath string

	cmd      *exec.Cmd
	client   *rpc.Client[lsp.Message]
	settings config.LsConfig

	callbacks []Callback
	nextID    uint64

	// nil until the initialize response lands.
	capabilities *protocol.ServerCapabilities
}

// NewHandler spawns the configured server command with piped stdio and
// builds its transport. It does not send initialize; the broker drives
// that explicitly.
func NewHandler(langID string, cfg config.LsConfig, rootPath string) (*Handler, error) {
	if len(cfg.Command) == 0 {
		return nil, NewLangServerError(LangServerProcess, "empty server command")
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LangServerError{Kind: LangServerProcess, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LangServerError{Kind: LangServerProcess, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LangServerError{Kind: LangServerProcess, Detail: cfg.Command[0], Err: err}
	}

	logging.Info("started %s language server (pid %d)", langID, cmd.Process.Pid)

	return &Handler{
		LangID:   langID,
		RootPath: rootPath,
		cmd:      cmd,
		client:   rpc.NewClient[lsp.Message](lsp.Codec{}, stdout, stdin),
		settings: cfg,
	}, nil
}

// newHandlerWithClient wires a handler onto an existing transport. Used by
// tests to stand in a fake server.
func newHandlerWithClient(langID string, cfg config.LsConfig, rootPath string, client *rpc.Client[lsp.Message]) *Handler {
	return &Handler{
		LangID:   langID,
		RootPath: rootPath,
		client:   client,
		settings: cfg,
	}
}

// Receiver returns the handler's inbound message stream for the broker's
// multiplexer.
func (h *Handler) Receiver() <-chan lsp.Message {
	return h.client.Inbound()
}

// Settings returns the per-language indentation configuration.
func (h *Handler) Settings() config.LsConfig {
	return h.settings
}

// Capabilities returns the server capabilities, or nil before initialize
// completes.
func (h *Handler) Capabilities() *protocol.ServerCapabilities {
	return h.capabilities
}

// IncludeFile reports whether the absolute path lies under this handler's
// root.
func (h *Handler) IncludeFile(path string) bool {
	rel, err := filepath.Rel(h.RootPath, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SyncKind returns the server's advertised document sync preference: the
// change member of TextDocumentSyncOptions if present, else a bare kind,
// else Full.
func (h *Handler) SyncKind() protocol.TextDocumentSyncKind {
	if h.capabilities == nil {
		return protocol.TextDocumentSyncKindFull
	}
	switch sync := h.capabilities.TextDocumentSync.(type) {
	case protocol.TextDocumentSyncKind:
		return sync
	case float64:
		return protocol.TextDocumentSyncKind(sync)
	case *protocol.TextDocumentSyncOptions:
		if sync != nil && sync.Change != nil {
			return *sync.Change
		}
	case protocol.TextDocumentSyncOptions:
		if sync.Change != nil {
			return *sync.Change
		}
	case map[string]any:
		if change, ok := sync["change"].(float64); ok {
			return protocol.TextDocumentSyncKind(change)
		}
	}
	return protocol.TextDocumentSyncKindFull
}

// fetchID allocates the next request id. Ids are strictly increasing and
// never reused within a handler.
func (h *Handler) fetchID() uint64 {
	h.nextID++
	return h.nextID
}

// CallbackFor removes and returns the callback registered for id. The
// table is small, so a linear scan with swap-remove matches its use.
func (h *Handler) CallbackFor(id uint64) (Callback, bool) {
	for i, cb := range h.callbacks {
		if cb.ID == id {
			last := len(h.callbacks) - 1
			h.callbacks[i] = h.callbacks[last]
			h.callbacks = h.callbacks[:last]
			return cb, true
		}
	}
	return Callback{}, false
}

// PendingCallbacks reports how many requests await a response.
func (h *Handler) PendingCallbacks() int {
	return len(h.callbacks)
}

func (h *Handler) send(msg lsp.Message) error {
	if err := h.client.Send(msg); err != nil {
		if errors.Is(err, rpc.ErrClosed) {
			return NewLangServerError(LangServerDisconnected, h.LangID)
		}
		return &LangServerError{Kind: LangServerProcess, Err: err}
	}
	return nil
}

// Request allocates an id, registers the typed callback and sends the
// request. The callback is erased into a form that decodes the raw
// response into R before invoking cb.
func Request[R any](h *Handler, method string, params any, cb func(editor Editor, handler *Handler, result R) error) error {
	req, err := lsp.NewRequest(0, method, params)
	if err != nil {
		return &LangServerError{Kind: LangServerInvalidRequest, Detail: method, Err: err}
	}
	id := h.fetchID()
	req.ID = id

	h.callbacks = append(h.callbacks, Callback{
		ID: id,
		Func: func(editor Editor, handler *Handler, resp *lsp.Response) error {
			result, err := lsp.CastResponse[R](resp)
			if err != nil {
				return &LangServerError{Kind: LangServerInvalidResponse, Detail: method, Err: err}
			}
			return cb(editor, handler, result)
		},
	})

	if err := h.send(req); err != nil {
		h.CallbackFor(id)
		return err
	}
	return nil
}

// Notify encodes and sends a notification; there is no callback.
func (h *Handler) Notify(method string, params any) error {
	note, err := lsp.NewNotification(method, params)
	if err != nil {
		return &LangServerError{Kind: LangServerInvalidNotification, Detail: method, Err: err}
	}
	return h.send(note)
}

// Initialize sends the initialize request. rootPath is deprecated by LSP
// but several servers still read it, so both it and rootUri are set.
func (h *Handler) Initialize(root string, capabilities protocol.ClientCapabilities, cb func(Editor, *Handler, protocol.InitializeResult) error) error {
	pid := protocol.Integer(os.Getpid())
	rootURI := protocol.DocumentUri(PathToURI(root))
	params := protocol.InitializeParams{
		ProcessID:    &pid,
		RootPath:     &root,
		RootURI:      &rootURI,
		Capabilities: capabilities,
	}
	return Request(h, lsp.MethodInitialize, &params, cb)
}

// InitializeResponse records the advertised server capabilities, then
// sends the initialized notification.
func (h *Handler) InitializeResponse(result protocol.InitializeResult) error {
	caps := result.Capabilities
	h.capabilities = &caps
	return h.Notify(lsp.MethodInitialized, struct{}{})
}

// PathToURI renders an absolute path as a file URL.
func PathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

// URIToPath strips the file scheme from a document URI.
func URIToPath(uri protocol.DocumentUri) string {
	return strings.TrimPrefix(string(uri), "file://")
}

func (h *Handler) String() string {
	return fmt.Sprintf("handler %d (%s, root %s)", h.ID, h.LangID, h.RootPath)
}

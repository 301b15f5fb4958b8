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
package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Methods the broker speaks toward language servers.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodHover       = "textDocument/hover"
	MethodDefinition  = "textDocument/definition"
	MethodReferences  = "textDocument/references"
	MethodFormatting  = "textDocument/formatting"
	MethodDidOpen     = "textDocument/didOpen"
	MethodDidChange   = "textDocument/didChange"
	MethodDidClose    = "textDocument/didClose"

	// MethodInlayHints is the rust-analyzer vendor extension predating the
	// standardized inlay hint request.
	MethodInlayHints = "rust-analyzer/inlayHints"
)

// Server-originated notification methods the broker recognizes.
const (
	MethodShowMessage        = "window/showMessage"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
)

// ReferenceParams is the parameter shape for textDocument/references.
type ReferenceParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
	Context      ReferenceContext                `json:"context"`
}

// ReferenceContext carries the declaration-inclusion flag.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// FormattingParams is the parameter shape for textDocument/formatting.
type FormattingParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions               `json:"options"`
}

// FormattingOptions carries the indentation settings configured per
// language server.
type FormattingOptions struct {
	TabSize      uint64 `json:"tabSize"`
	InsertSpaces bool   `json:"insertSpaces"`
}

// InlayHintsParams is the parameter shape for rust-analyzer/inlayHints.
type InlayHintsParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// InlayKind is the vendor hint kind.
type InlayKind string

// InlayKindTypeHint is the only kind the broker renders.
const InlayKindTypeHint InlayKind = "TypeHint"

// InlayHint is one inline annotation as returned by rust-analyzer.
type InlayHint struct {
	Range protocol.Range `json:"range"`
	Kind  InlayKind      `json:"kind"`
	Label string         `json:"label"`
}

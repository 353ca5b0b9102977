// Copyright 2022, Pulumi Corporation.  All rights reserved.

package service

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
)

// Hover returns the first non-empty hover, or nil.
func (s *Service) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.HoverProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) (*protocol.Hover, error) {
			return srv.Hover(ctx, params)
		},
		func(h *protocol.Hover) bool { return h != nil && h.Contents.Value != "" })
}

func (s *Service) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.SignatureHelpProvider.IsSome() },
		func(ctx context.Context, srv protocol.Server) (*protocol.SignatureHelp, error) {
			return srv.SignatureHelp(ctx, params)
		},
		func(h *protocol.SignatureHelp) bool { return h != nil && len(h.Signatures) > 0 })
}

func (s *Service) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.DocumentHighlightProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.DocumentHighlight, error) {
			return srv.DocumentHighlight(ctx, params)
		},
		func(h []protocol.DocumentHighlight) bool { return len(h) > 0 })
}

// Formatting takes the edits of the best matching server that answers.
func (s *Service) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.DocumentFormattingProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.TextEdit, error) {
			return srv.Formatting(ctx, params)
		},
		answered[protocol.TextEdit])
}

func (s *Service) RangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.DocumentRangeFormattingProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.TextEdit, error) {
			return srv.RangeFormatting(ctx, params)
		},
		answered[protocol.TextEdit])
}

func (s *Service) OnTypeFormatting(ctx context.Context, params *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.OnTypeFormattingProvider.IsSome() },
		func(ctx context.Context, srv protocol.Server) ([]protocol.TextEdit, error) {
			return srv.OnTypeFormatting(ctx, params)
		},
		answered[protocol.TextEdit])
}

func (s *Service) Rename(ctx context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	return first(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.RenameProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) (*protocol.WorkspaceEdit, error) {
			return srv.Rename(ctx, params)
		},
		func(e *protocol.WorkspaceEdit) bool { return e != nil })
}

// References concatenates the locations of every server.
func (s *Service) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	return all(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.ReferencesProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.Location, error) {
			return srv.References(ctx, params)
		})
}

func (s *Service) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	return all(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.DefinitionProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.Location, error) {
			return srv.Definition(ctx, params)
		})
}

// DocumentSymbol concatenates what every server returns. Servers may answer
// with either SymbolInformation or DocumentSymbol values.
func (s *Service) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]interface{}, error) {
	return all(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.DocumentSymbolProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]interface{}, error) {
			return srv.DocumentSymbol(ctx, params)
		})
}

func (s *Service) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	return all(ctx, s, params.TextDocument.URI,
		func(c capability.Capabilities) bool { return c.CodeActionProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.CodeAction, error) {
			return srv.CodeAction(ctx, params)
		})
}

// WorkspaceSymbol asks every ready server of every project.
func (s *Service) WorkspaceSymbol(ctx context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	return gather(ctx, s, s.registry.Initialized(),
		func(c capability.Capabilities) bool { return c.WorkspaceSymbolProvider.OrElse(false) },
		func(ctx context.Context, srv protocol.Server) ([]protocol.SymbolInformation, error) {
			return srv.Symbols(ctx, params)
		}, s.symbolTimeout), nil
}

// A null answer means the server has nothing to say. An empty list is an
// answer.
func answered[T any](edits []T) bool {
	return edits != nil
}

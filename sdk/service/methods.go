// Copyright 2022, Pulumi Corporation.  All rights reserved.

package service

import (
	"context"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
)

// Methods serves an editor over LSP, routing every request through s. Once
// the editor is initialized, events on hub are forwarded to it.
func (s *Service) Methods(hub *notify.Hub, name, version string) *lsp.Methods {
	var mu sync.Mutex
	unsubscribe := func() {}

	m := lsp.Methods{
		InitializedFunc: func(client lsp.Client, params *protocol.InitializedParams) error {
			events, cancel := hub.Subscribe(64)
			mu.Lock()
			unsubscribe = cancel
			mu.Unlock()
			go forward(client.WithContext(context.Background()), events)
			return nil
		},
		ShutdownFunc: func(client lsp.Client) error {
			mu.Lock()
			unsubscribe()
			mu.Unlock()
			s.Close()
			s.registry.Shutdown(client.Context())
			return nil
		},

		CompletionFunc: func(client lsp.Client, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
			return s.Completion(client.Context(), params)
		},
		CompletionResolveFunc: func(client lsp.Client, params *protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return s.CompletionResolve(client.Context(), params)
		},
		HoverFunc: func(client lsp.Client, params *protocol.HoverParams) (*protocol.Hover, error) {
			return s.Hover(client.Context(), params)
		},
		SignatureHelpFunc: func(client lsp.Client, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
			return s.SignatureHelp(client.Context(), params)
		},
		DefinitionFunc: func(client lsp.Client, params *protocol.DefinitionParams) ([]protocol.Location, error) {
			return s.Definition(client.Context(), params)
		},
		ReferencesFunc: func(client lsp.Client, params *protocol.ReferenceParams) ([]protocol.Location, error) {
			return s.References(client.Context(), params)
		},
		DocumentHighlightFunc: func(client lsp.Client, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
			return s.DocumentHighlight(client.Context(), params)
		},
		DocumentSymbolFunc: func(client lsp.Client, params *protocol.DocumentSymbolParams) ([]interface{}, error) {
			return s.DocumentSymbol(client.Context(), params)
		},
		FormattingFunc: func(client lsp.Client, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
			return s.Formatting(client.Context(), params)
		},
		RangeFormattingFunc: func(client lsp.Client, params *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
			return s.RangeFormatting(client.Context(), params)
		},
		OnTypeFormattingFunc: func(client lsp.Client, params *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
			return s.OnTypeFormatting(client.Context(), params)
		},
		RenameFunc: func(client lsp.Client, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
			return s.Rename(client.Context(), params)
		},
		CodeActionFunc: func(client lsp.Client, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
			return s.CodeAction(client.Context(), params)
		},
		SymbolsFunc: func(client lsp.Client, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
			return s.WorkspaceSymbol(client.Context(), params)
		},
		DidOpenFunc: func(client lsp.Client, params *protocol.DidOpenTextDocumentParams) error {
			return s.DidOpen(client.Context(), params)
		},
		DidChangeFunc: func(client lsp.Client, params *protocol.DidChangeTextDocumentParams) error {
			return s.DidChange(client.Context(), params)
		},
		DidCloseFunc: func(client lsp.Client, params *protocol.DidCloseTextDocumentParams) error {
			return s.DidClose(client.Context(), params)
		},
		DidSaveFunc: func(client lsp.Client, params *protocol.DidSaveTextDocumentParams) error {
			return s.DidSave(client.Context(), params)
		},
	}
	return m.DefaultInitializer(name, version, func() protocol.ServerCapabilities {
		return s.Capabilities().Protocol()
	})
}

// forward relays hub events to the editor until the subscription ends.
func forward(client lsp.Client, events <-chan notify.Event) {
	for e := range events {
		var err error
		switch e.Kind {
		case notify.Diagnostics:
			if params, ok := e.Payload.(*protocol.PublishDiagnosticsParams); ok {
				err = client.PublishDiagnostics(params)
			}
		case notify.ShowMessage:
			if params, ok := e.Payload.(*protocol.ShowMessageParams); ok {
				err = client.ShowMessage(params)
			}
		case notify.LaunchFailed, notify.ServerCrashed:
			err = client.ShowMessage(&protocol.ShowMessageParams{
				Type:    protocol.MessageTypeError,
				Message: e.Message,
			})
		case notify.LogMessage:
			err = client.LogInfof("[%s] %s", e.ServerID, e.Message)
		}
		if err != nil {
			return
		}
	}
}

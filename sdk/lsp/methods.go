// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"

	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Methods provides the interface to define methods for the LSP server. Only
// the methods below can be served; any other request is answered with
// MethodNotFound.
type Methods struct {
	// A pointer back to the server
	server *Server
	// And a channel to indicate that the server has exited
	closer chan<- struct{}

	InitializeFunc  func(client Client, params *protocol.InitializeParams) (result *protocol.InitializeResult, err error)
	InitializedFunc func(client Client, params *protocol.InitializedParams) (err error)
	ShutdownFunc    func(client Client) (err error)
	ExitFunc        func(client Client) (err error)

	CompletionFunc        func(client Client, params *protocol.CompletionParams) (result *protocol.CompletionList, err error)
	CompletionResolveFunc func(client Client, params *protocol.CompletionItem) (result *protocol.CompletionItem, err error)
	HoverFunc             func(client Client, params *protocol.HoverParams) (result *protocol.Hover, err error)
	SignatureHelpFunc     func(client Client, params *protocol.SignatureHelpParams) (result *protocol.SignatureHelp, err error)
	DefinitionFunc        func(client Client, params *protocol.DefinitionParams) (result []protocol.Location, err error)
	ReferencesFunc        func(client Client, params *protocol.ReferenceParams) (result []protocol.Location, err error)
	DocumentHighlightFunc func(client Client, params *protocol.DocumentHighlightParams) (result []protocol.DocumentHighlight, err error)
	DocumentSymbolFunc    func(client Client, params *protocol.DocumentSymbolParams) (result []interface{}, err error)
	FormattingFunc        func(client Client, params *protocol.DocumentFormattingParams) (result []protocol.TextEdit, err error)
	RangeFormattingFunc   func(client Client, params *protocol.DocumentRangeFormattingParams) (result []protocol.TextEdit, err error)
	OnTypeFormattingFunc  func(client Client, params *protocol.DocumentOnTypeFormattingParams) (result []protocol.TextEdit, err error)
	RenameFunc            func(client Client, params *protocol.RenameParams) (result *protocol.WorkspaceEdit, err error)
	CodeActionFunc        func(client Client, params *protocol.CodeActionParams) (result []protocol.CodeAction, err error)
	SymbolsFunc           func(client Client, params *protocol.WorkspaceSymbolParams) (result []protocol.SymbolInformation, err error)
	DidOpenFunc           func(client Client, params *protocol.DidOpenTextDocumentParams) (err error)
	DidChangeFunc         func(client Client, params *protocol.DidChangeTextDocumentParams) (err error)
	DidCloseFunc          func(client Client, params *protocol.DidCloseTextDocumentParams) (err error)
	DidSaveFunc           func(client Client, params *protocol.DidSaveTextDocumentParams) (err error)
}

// The method names served for each handler that is set.
func (m *Methods) routes() map[string]bool {
	routes := map[string]bool{
		"initialize":  true,
		"initialized": true,
		"shutdown":    true,
		"exit":        true,
	}
	if m.CompletionFunc != nil {
		routes["textDocument/completion"] = true
	}
	if m.CompletionResolveFunc != nil {
		routes["completionItem/resolve"] = true
	}
	if m.HoverFunc != nil {
		routes["textDocument/hover"] = true
	}
	if m.SignatureHelpFunc != nil {
		routes["textDocument/signatureHelp"] = true
	}
	if m.DefinitionFunc != nil {
		routes["textDocument/definition"] = true
	}
	if m.ReferencesFunc != nil {
		routes["textDocument/references"] = true
	}
	if m.DocumentHighlightFunc != nil {
		routes["textDocument/documentHighlight"] = true
	}
	if m.DocumentSymbolFunc != nil {
		routes["textDocument/documentSymbol"] = true
	}
	if m.FormattingFunc != nil {
		routes["textDocument/formatting"] = true
	}
	if m.RangeFormattingFunc != nil {
		routes["textDocument/rangeFormatting"] = true
	}
	if m.OnTypeFormattingFunc != nil {
		routes["textDocument/onTypeFormatting"] = true
	}
	if m.RenameFunc != nil {
		routes["textDocument/rename"] = true
	}
	if m.CodeActionFunc != nil {
		routes["textDocument/codeAction"] = true
	}
	if m.SymbolsFunc != nil {
		routes["workspace/symbol"] = true
	}
	if m.DidOpenFunc != nil {
		routes["textDocument/didOpen"] = true
	}
	if m.DidChangeFunc != nil {
		routes["textDocument/didChange"] = true
	}
	if m.DidCloseFunc != nil {
		routes["textDocument/didClose"] = true
	}
	if m.DidSaveFunc != nil {
		routes["textDocument/didSave"] = true
	}
	return routes
}

// DefaultInitializer answers initialize with the capabilities returned by
// `capabilities` and the given server info.
//
// This function will panic if a `InitializeFunc` is already set.
func (m Methods) DefaultInitializer(name, version string, capabilities func() protocol.ServerCapabilities) *Methods {
	contract.Assertf(m.InitializeFunc == nil, "Won't override an already set initializer")
	m.InitializeFunc = func(client Client, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
		return &protocol.InitializeResult{
			Capabilities: capabilities(),
			ServerInfo: &protocol.ServerInfo{
				Name:    name,
				Version: version,
			},
		}, nil
	}
	return &m
}

func (m *methods) client(ctx context.Context) Client {
	return Client{
		inner: m.server.client,
		ctx:   ctx,
	}
}

func (m *Methods) serve() *methods {
	return &methods{Methods: m}
}

// handler dispatches routed methods to the server. Requests are answered on
// their own goroutine, so a slow fan-out does not hold up the connection.
// Notifications are handled in order. Until initialize succeeds, requests are
// answered with ServerNotInitialized and notifications other than exit are
// dropped.
func (m *Methods) handler() jsonrpc2.Handler {
	routes := m.routes()
	serve := protocol.ServerHandler(m.serve(), jsonrpc2.MethodNotFoundHandler)
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		_, isCall := req.(*jsonrpc2.Call)
		if !m.server.isInitialized.Load() &&
			req.Method() != protocol.MethodInitialize && req.Method() != protocol.MethodExit {
			if !isCall {
				m.server.Logger.Debugf("Dropping '%s' sent before initialize", req.Method())
				return nil
			}
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.ServerNotInitialized, "server not initialized"))
		}
		if !routes[req.Method()] {
			m.server.Logger.Debugf("'%s' was called but no handler was provided", req.Method())
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}
		if !isCall {
			return serve(ctx, reply, req)
		}
		go func() {
			if err := serve(ctx, reply, req); err != nil {
				_ = reply(ctx, nil, err)
			}
		}()
		return nil
	}
}

// The actual implementer of the protocol.Server trait. We do this to prevent
// calling a method on `Methods`, and to keep auto-complete uncluttered.
//
// Methods that are not routed are never called, so the embedded interface is
// left nil.
type methods struct {
	*Methods
	protocol.Server
}

func (m *methods) warnUninitialized(name string) {
	m.server.Logger.Debugf("'%s' was called but no handler was provided", name)
}

func (m *methods) Initialize(ctx context.Context, params *protocol.InitializeParams) (result *protocol.InitializeResult, err error) {
	if m.InitializeFunc != nil {
		result, err = m.InitializeFunc(m.client(ctx), params)
	} else {
		m.warnUninitialized("initialize")
	}
	if err == nil {
		m.server.isInitialized.Store(true)
	}
	return
}
func (m *methods) Initialized(ctx context.Context, params *protocol.InitializedParams) (err error) {
	if m.InitializedFunc != nil {
		err = m.InitializedFunc(m.client(ctx), params)
	} else {
		m.warnUninitialized("initialized")
	}
	return
}
func (m *methods) Shutdown(ctx context.Context) (err error) {
	if m.ShutdownFunc != nil {
		err = m.ShutdownFunc(m.client(ctx))
	} else {
		m.warnUninitialized("shutdown")
	}
	return
}
func (m *methods) Exit(ctx context.Context) (err error) {
	if m.ExitFunc != nil {
		err = m.ExitFunc(m.client(ctx))
	} else {
		m.warnUninitialized("exit")
	}
	select {
	case m.closer <- struct{}{}:
	default:
	}
	return
}
func (m *methods) Completion(ctx context.Context, params *protocol.CompletionParams) (result *protocol.CompletionList, err error) {
	result, err = m.CompletionFunc(m.client(ctx), params)
	return
}
func (m *methods) CompletionResolve(ctx context.Context, params *protocol.CompletionItem) (result *protocol.CompletionItem, err error) {
	result, err = m.CompletionResolveFunc(m.client(ctx), params)
	return
}
func (m *methods) Hover(ctx context.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	result, err = m.HoverFunc(m.client(ctx), params)
	return
}
func (m *methods) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (result *protocol.SignatureHelp, err error) {
	result, err = m.SignatureHelpFunc(m.client(ctx), params)
	return
}
func (m *methods) Definition(ctx context.Context, params *protocol.DefinitionParams) (result []protocol.Location, err error) {
	result, err = m.DefinitionFunc(m.client(ctx), params)
	return
}
func (m *methods) References(ctx context.Context, params *protocol.ReferenceParams) (result []protocol.Location, err error) {
	result, err = m.ReferencesFunc(m.client(ctx), params)
	return
}
func (m *methods) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) (result []protocol.DocumentHighlight, err error) {
	result, err = m.DocumentHighlightFunc(m.client(ctx), params)
	return
}
func (m *methods) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) (result []interface{}, err error) {
	result, err = m.DocumentSymbolFunc(m.client(ctx), params)
	return
}
func (m *methods) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) (result []protocol.TextEdit, err error) {
	result, err = m.FormattingFunc(m.client(ctx), params)
	return
}
func (m *methods) RangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) (result []protocol.TextEdit, err error) {
	result, err = m.RangeFormattingFunc(m.client(ctx), params)
	return
}
func (m *methods) OnTypeFormatting(ctx context.Context, params *protocol.DocumentOnTypeFormattingParams) (result []protocol.TextEdit, err error) {
	result, err = m.OnTypeFormattingFunc(m.client(ctx), params)
	return
}
func (m *methods) Rename(ctx context.Context, params *protocol.RenameParams) (result *protocol.WorkspaceEdit, err error) {
	result, err = m.RenameFunc(m.client(ctx), params)
	return
}
func (m *methods) CodeAction(ctx context.Context, params *protocol.CodeActionParams) (result []protocol.CodeAction, err error) {
	result, err = m.CodeActionFunc(m.client(ctx), params)
	return
}
func (m *methods) Symbols(ctx context.Context, params *protocol.WorkspaceSymbolParams) (result []protocol.SymbolInformation, err error) {
	result, err = m.SymbolsFunc(m.client(ctx), params)
	return
}
func (m *methods) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) (err error) {
	return m.DidOpenFunc(m.client(ctx), params)
}
func (m *methods) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) (err error) {
	return m.DidChangeFunc(m.client(ctx), params)
}
func (m *methods) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) (err error) {
	return m.DidCloseFunc(m.client(ctx), params)
}
func (m *methods) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) (err error) {
	return m.DidSaveFunc(m.client(ctx), params)
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// Package lsptest provides in-memory language servers for tests.
package lsptest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/server"
)

// Server is a protocol.Server that records every call. Only the methods the
// dispatcher uses are implemented; the rest panic through the nil embedded
// interface.
type Server struct {
	protocol.Server

	Result        *protocol.InitializeResult
	InitializeErr error
	// When set, initialize waits for Block to be closed.
	Block chan struct{}

	OnHover             func(context.Context, *protocol.HoverParams) (*protocol.Hover, error)
	OnCompletion        func(context.Context, *protocol.CompletionParams) (*protocol.CompletionList, error)
	OnCompletionResolve func(context.Context, *protocol.CompletionItem) (*protocol.CompletionItem, error)
	OnSignatureHelp     func(context.Context, *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error)
	OnDefinition        func(context.Context, *protocol.DefinitionParams) ([]protocol.Location, error)
	OnReferences        func(context.Context, *protocol.ReferenceParams) ([]protocol.Location, error)
	OnDocumentHighlight func(context.Context, *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error)
	OnDocumentSymbol    func(context.Context, *protocol.DocumentSymbolParams) ([]interface{}, error)
	OnFormatting        func(context.Context, *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error)
	OnRangeFormatting   func(context.Context, *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error)
	OnOnTypeFormatting  func(context.Context, *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error)
	OnRename            func(context.Context, *protocol.RenameParams) (*protocol.WorkspaceEdit, error)
	OnCodeAction        func(context.Context, *protocol.CodeActionParams) ([]protocol.CodeAction, error)
	OnSymbols           func(context.Context, *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error)

	mu      sync.Mutex
	calls   []string
	opened  []protocol.TextDocumentItem
	changes []*protocol.DidChangeTextDocumentParams
}

// Calls returns the names of the methods called so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Count the calls to method.
func (s *Server) Count(method string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Opened returns the documents received through didOpen.
func (s *Server) Opened() []protocol.TextDocumentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.TextDocumentItem(nil), s.opened...)
}

// Changes returns the didChange notifications received.
func (s *Server) Changes() []*protocol.DidChangeTextDocumentParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.DidChangeTextDocumentParams(nil), s.changes...)
}

func (s *Server) record(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, method)
}

func (s *Server) Initialize(ctx context.Context, _ *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.record("initialize")
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.InitializeErr != nil {
		return nil, s.InitializeErr
	}
	if s.Result == nil {
		return &protocol.InitializeResult{}, nil
	}
	return s.Result, nil
}

func (s *Server) Initialized(context.Context, *protocol.InitializedParams) error {
	s.record("initialized")
	return nil
}

func (s *Server) Shutdown(context.Context) error {
	s.record("shutdown")
	return nil
}

func (s *Server) Exit(context.Context) error {
	s.record("exit")
	return nil
}

func (s *Server) DidOpen(_ context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.record("didOpen")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, params.TextDocument)
	return nil
}

func (s *Server) DidChange(_ context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.record("didChange")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, params)
	return nil
}

func (s *Server) DidClose(context.Context, *protocol.DidCloseTextDocumentParams) error {
	s.record("didClose")
	return nil
}

func (s *Server) DidSave(context.Context, *protocol.DidSaveTextDocumentParams) error {
	s.record("didSave")
	return nil
}

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.record("hover")
	if s.OnHover == nil {
		return nil, nil
	}
	return s.OnHover(ctx, params)
}

func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.record("completion")
	if s.OnCompletion == nil {
		return nil, nil
	}
	return s.OnCompletion(ctx, params)
}

func (s *Server) CompletionResolve(ctx context.Context, params *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	s.record("completionResolve")
	if s.OnCompletionResolve == nil {
		return params, nil
	}
	return s.OnCompletionResolve(ctx, params)
}

func (s *Server) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	s.record("signatureHelp")
	if s.OnSignatureHelp == nil {
		return nil, nil
	}
	return s.OnSignatureHelp(ctx, params)
}

func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	s.record("definition")
	if s.OnDefinition == nil {
		return nil, nil
	}
	return s.OnDefinition(ctx, params)
}

func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.record("references")
	if s.OnReferences == nil {
		return nil, nil
	}
	return s.OnReferences(ctx, params)
}

func (s *Server) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	s.record("documentHighlight")
	if s.OnDocumentHighlight == nil {
		return nil, nil
	}
	return s.OnDocumentHighlight(ctx, params)
}

func (s *Server) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]interface{}, error) {
	s.record("documentSymbol")
	if s.OnDocumentSymbol == nil {
		return nil, nil
	}
	return s.OnDocumentSymbol(ctx, params)
}

func (s *Server) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	s.record("formatting")
	if s.OnFormatting == nil {
		return nil, nil
	}
	return s.OnFormatting(ctx, params)
}

func (s *Server) RangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
	s.record("rangeFormatting")
	if s.OnRangeFormatting == nil {
		return nil, nil
	}
	return s.OnRangeFormatting(ctx, params)
}

func (s *Server) OnTypeFormatting(ctx context.Context, params *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
	s.record("onTypeFormatting")
	if s.OnOnTypeFormatting == nil {
		return nil, nil
	}
	return s.OnOnTypeFormatting(ctx, params)
}

func (s *Server) Rename(ctx context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	s.record("rename")
	if s.OnRename == nil {
		return nil, nil
	}
	return s.OnRename(ctx, params)
}

func (s *Server) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	s.record("codeAction")
	if s.OnCodeAction == nil {
		return nil, nil
	}
	return s.OnCodeAction(ctx, params)
}

func (s *Server) Symbols(ctx context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	s.record("symbols")
	if s.OnSymbols == nil {
		return nil, nil
	}
	return s.OnSymbols(ctx, params)
}

// Conn is an in-memory server.Connection.
type Conn struct {
	server protocol.Server
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func NewConn(s protocol.Server) *Conn {
	return &Conn{server: s, done: make(chan struct{})}
}

func (c *Conn) Server() protocol.Server { return c.server }

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Close() error {
	c.closed.Store(true)
	c.once.Do(func() { close(c.done) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Crash drops the connection as if the server process died.
func (c *Conn) Crash() {
	c.once.Do(func() { close(c.done) })
}

// Launcher starts in-memory servers and counts how often it was asked to.
type Launcher struct {
	Desc *server.Description
	// Reported by IsAbleToLaunch, inverted.
	Unable bool
	// Returned by Launch.
	Err error
	// Launch sleeps this long first.
	Delay time.Duration
	// Builds the server for each launch. Defaults to a Server answering with
	// Result.
	NewServer func() *Server
	Result    *protocol.InitializeResult

	launches atomic.Int32
	mu       sync.Mutex
	servers  []*Server
	conns    []*Conn
	clients  []protocol.Client
}

// NewLauncher returns a launcher for a server handling languageIDs, whose
// servers advertise caps.
func NewLauncher(id string, caps protocol.ServerCapabilities, languageIDs ...string) *Launcher {
	return &Launcher{
		Desc:   &server.Description{ID: id, LanguageIDs: languageIDs},
		Result: &protocol.InitializeResult{Capabilities: caps},
	}
}

func (l *Launcher) Description() *server.Description { return l.Desc }

func (l *Launcher) IsAbleToLaunch() bool { return !l.Unable }

func (l *Launcher) Launch(ctx context.Context, _ string, client protocol.Client) (server.Connection, error) {
	l.launches.Add(1)
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	var s *Server
	if l.NewServer != nil {
		s = l.NewServer()
	} else {
		s = &Server{Result: l.Result}
	}
	c := NewConn(s)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.servers = append(l.servers, s)
	l.conns = append(l.conns, c)
	l.clients = append(l.clients, client)
	return c, nil
}

// Launches is the number of times Launch was called.
func (l *Launcher) Launches() int { return int(l.launches.Load()) }

func (l *Launcher) Servers() []*Server {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Server(nil), l.servers...)
}

func (l *Launcher) Conns() []*Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Conn(nil), l.conns...)
}

// Clients are the protocol.Clients handed to each launch.
func (l *Launcher) Clients() []protocol.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protocol.Client(nil), l.clients...)
}

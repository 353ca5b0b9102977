// Copyright 2022, Pulumi Corporation.  All rights reserved.

package service

import (
	"context"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

// An open document and the servers it has been opened on. Every notification
// about the document is sent while holding mu, so servers see them in order.
type openDocument struct {
	doc     *lsp.Document
	project string

	mu     sync.Mutex
	opened map[*server.Initialized]struct{}
	closed bool
}

type documents struct {
	mu   sync.Mutex
	open map[protocol.DocumentURI]*openDocument
}

func newDocuments() *documents {
	return &documents{open: map[protocol.DocumentURI]*openDocument{}}
}

func (d *documents) get(uri protocol.DocumentURI) (*openDocument, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	od, ok := d.open[uri]
	return od, ok
}

func (d *documents) put(od *openDocument) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open[od.doc.URI()] = od
}

func (d *documents) remove(uri protocol.DocumentURI) (*openDocument, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	od, ok := d.open[uri]
	delete(d.open, uri)
	return od, ok
}

func (d *documents) all() []*openDocument {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*openDocument, 0, len(d.open))
	for _, od := range d.open {
		out = append(out, od)
	}
	return out
}

// OpenDocuments lists the URIs of the documents currently open.
func (s *Service) OpenDocuments() []protocol.DocumentURI {
	docs := s.docs.all()
	uris := make([]protocol.DocumentURI, len(docs))
	for i, od := range docs {
		uris[i] = od.doc.URI()
	}
	return uris
}

// Document returns the current content of an open document.
func (s *Service) Document(uri protocol.DocumentURI) (*lsp.Document, bool) {
	od, ok := s.docs.get(uri)
	if !ok {
		return nil, false
	}
	return od.doc, true
}

// DidOpen starts tracking the document and opens it on every applicable
// server, launching servers as needed.
func (s *Service) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	project, err := s.registry.Project(string(uri))
	if err != nil {
		return err
	}
	od := &openDocument{
		doc:     lsp.NewDocument(params.TextDocument),
		project: project,
		opened:  map[*server.Initialized]struct{}{},
	}
	if _, ok := s.docs.get(uri); ok {
		s.logger.Debugf("%s was opened again", uri)
		_ = s.DidClose(ctx, &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		})
	}
	s.docs.put(od)

	servers, err := s.servers(ctx, uri)
	if err != nil {
		return err
	}
	s.openOn(ctx, od, servers)
	return nil
}

// openOn sends didOpen to the servers that have not seen the document yet.
func (s *Service) openOn(ctx context.Context, od *openDocument, servers []*server.Initialized) {
	od.mu.Lock()
	defer od.mu.Unlock()
	if od.closed {
		return
	}
	var fresh []*server.Initialized
	for _, srv := range servers {
		if _, ok := od.opened[srv]; ok {
			continue
		}
		od.opened[srv] = struct{}{}
		fresh = append(fresh, srv)
	}
	params := &protocol.DidOpenTextDocumentParams{TextDocument: od.doc.Item()}
	s.broadcast(ctx, fresh, "textDocument/didOpen", func(ctx context.Context, srv *server.Initialized) error {
		return srv.Server().DidOpen(ctx, params)
	})
}

// DidChange applies the changes to the tracked document, then forwards them.
// Servers that sync fully get the whole text, servers that asked for no sync
// get nothing.
func (s *Service) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	od, ok := s.docs.get(uri)
	if !ok {
		return fmt.Errorf("%s is not open", uri)
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	if err := od.doc.AcceptChanges(params.TextDocument.Version, params.ContentChanges); err != nil {
		return err
	}
	full := &protocol.DidChangeTextDocumentParams{
		TextDocument:   params.TextDocument,
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: od.doc.String()}},
	}
	s.broadcast(ctx, od.live(), "textDocument/didChange", func(ctx context.Context, srv *server.Initialized) error {
		switch srv.Capabilities.TextDocumentSync {
		case protocol.TextDocumentSyncKindNone:
			return nil
		case protocol.TextDocumentSyncKindIncremental:
			return srv.Server().DidChange(ctx, params)
		default:
			return srv.Server().DidChange(ctx, full)
		}
	})
	return nil
}

func (s *Service) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	od, ok := s.docs.get(params.TextDocument.URI)
	if !ok {
		return fmt.Errorf("%s is not open", params.TextDocument.URI)
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	s.broadcast(ctx, od.live(), "textDocument/didSave", func(ctx context.Context, srv *server.Initialized) error {
		return srv.Server().DidSave(ctx, params)
	})
	return nil
}

// DidClose stops tracking the document and closes it where it was opened.
func (s *Service) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	od, ok := s.docs.remove(params.TextDocument.URI)
	if !ok {
		s.logger.Debugf("%s was closed but never opened", params.TextDocument.URI)
		return nil
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	od.closed = true
	s.broadcast(ctx, od.live(), "textDocument/didClose", func(ctx context.Context, srv *server.Initialized) error {
		return srv.Server().DidClose(ctx, params)
	})
	return nil
}

// live returns the servers the document was opened on whose connection is
// still up. od.mu must be held.
func (od *openDocument) live() []*server.Initialized {
	var out []*server.Initialized
	for srv := range od.opened {
		select {
		case <-srv.Conn.Done():
			delete(od.opened, srv)
		default:
			out = append(out, srv)
		}
	}
	return out
}

// replay opens the documents of srv's project that it handles. It is called
// by the initializer as soon as srv is ready, and must not block it.
func (s *Service) replay(srv *server.Initialized) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		for _, od := range s.docs.all() {
			if od.project != srv.Project || s.registry.Score(srv, string(od.doc.URI())) == server.NoMatch {
				continue
			}
			s.openOn(ctx, od, []*server.Initialized{srv})
		}
	}()
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The lsp package implements a convenience wrapper around the
// go.lsp.dev/protocol package. It handles both sides of the protocol: serving
// an editor that replies to only some lsp requests, and dialing the language
// servers that actually answer them.
package lsp

import (
	"context"
	"io"
	"sync/atomic"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// A Server combines a set of LSP methods with the infrastructure needed to
// fullfill the server side of the LSP contract.
type Server struct {
	methods       *Methods
	conn          io.ReadWriteCloser
	cancel        <-chan struct{}
	isInitialized atomic.Bool
	client        protocol.Client

	// The logger used by the server.
	Logger *zap.SugaredLogger
}

// Create a new server backed by `Methods`. The server reads requests and writes
// responses via `conn`.
func NewServer(methods *Methods, conn io.ReadWriteCloser) *Server {
	return &Server{
		methods: methods,
		conn:    conn,
	}
}

// Synchronously run the server. The server is rooted in the given context,
// which can be used to cancel the server. Run returns after `exit`, or when
// the connection is lost.
func (s *Server) Run(ctx context.Context) error {
	if s.Logger == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		s.Logger = logger.Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rpc := s.run(ctx)
	select {
	case <-s.cancel:
	case <-rpc.Done():
	case <-ctx.Done():
	}
	_ = rpc.Close()
	return nil
}

// Actually kick off the server
func (s *Server) run(ctx context.Context) jsonrpc2.Conn {
	closer := make(chan struct{}, 1)

	s.cancel = closer
	s.methods.server = s
	s.methods.closer = closer

	rpc := jsonrpc2.NewConn(jsonrpc2.NewStream(s.conn))
	s.client = protocol.ClientDispatcher(rpc, s.Logger.Desugar())
	rpc.Go(ctx, s.methods.handler())
	return rpc
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	"io"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Conn is the client side of a connection to a language server.
type Conn struct {
	rpc    jsonrpc2.Conn
	server protocol.Server
	cancel context.CancelFunc
}

// Dial speaks LSP over rwc. Requests and notifications sent by the server are
// handled by client. The connection lives until it is closed or rwc reaches
// EOF, independent of the context used to set it up.
func Dial(rwc io.ReadWriteCloser, client protocol.Client, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	rpc := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	rpc.Go(ctx, protocol.ClientHandler(client, jsonrpc2.MethodNotFoundHandler))
	return &Conn{
		rpc: rpc,
		server: &dispatcher{
			Server: protocol.ServerDispatcher(rpc, logger),
			rpc:    rpc,
		},
		cancel: cancel,
	}
}

func (c *Conn) Server() protocol.Server {
	return c.server
}

// Done is closed when the underlying stream is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.rpc.Done()
}

// Err reports why the connection finished.
func (c *Conn) Err() error {
	return c.rpc.Err()
}

func (c *Conn) Close() error {
	defer c.cancel()
	return c.rpc.Close()
}

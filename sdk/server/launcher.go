// Copyright 2022, Pulumi Corporation.  All rights reserved.

package server

import (
	"context"

	"go.lsp.dev/protocol"
)

// A Launcher starts one kind of language server. Implementations must be safe
// for concurrent use.
type Launcher interface {
	// The static description of the server this launcher starts.
	Description() *Description
	// Whether the server can be launched at all in this environment.
	IsAbleToLaunch() bool
	// Start the server for the project rooted at projectRoot. Messages the
	// server sends to its client are delivered to client.
	Launch(ctx context.Context, projectRoot string, client protocol.Client) (Connection, error)
}

// Connection is a live link to a running language server.
type Connection interface {
	Server() protocol.Server
	// Done is closed when the connection to the server is lost.
	Done() <-chan struct{}
	Close() error
}

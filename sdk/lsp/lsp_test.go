// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/notify"
)

func TestServerOverTheWire(t *testing.T) {
	t.Parallel()

	serverSide, clientSide := net.Pipe()
	methods := Methods{
		HoverFunc: func(client Client, params *protocol.HoverParams) (*protocol.Hover, error) {
			return &protocol.Hover{Contents: protocol.MarkupContent{
				Kind:  protocol.PlainText,
				Value: "hover " + string(params.TextDocument.URI),
			}}, nil
		},
	}
	srv := NewServer(methods.DefaultInitializer("test-server", "1.2.3", func() protocol.ServerCapabilities {
		return protocol.ServerCapabilities{HoverProvider: true}
	}), serverSide)
	srv.Logger = zap.NewNop().Sugar()

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	conn := Dial(clientSide, NewRelay("test-server", "/projects/p", notify.Discard, nil), nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hoverParams := &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///projects/p/a.foo"},
		},
	}
	_, err := conn.Server().Hover(ctx, hoverParams)
	assert.ErrorContains(t, err, "server not initialized")

	result, err := conn.Server().Initialize(ctx, &protocol.InitializeParams{})
	require.NoError(t, err)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.Equal(t, true, result.Capabilities.HoverProvider)

	hover, err := conn.Server().Hover(ctx, hoverParams)
	require.NoError(t, err)
	assert.Equal(t, "hover file:///projects/p/a.foo", hover.Contents.Value)

	// Nothing handles definitions.
	_, err = conn.Server().Definition(ctx, &protocol.DefinitionParams{})
	assert.Error(t, err)

	require.NoError(t, conn.Server().Exit(ctx))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		require.FailNow(t, "server did not exit")
	}
	select {
	case <-conn.Done():
	case <-ctx.Done():
		require.FailNow(t, "client connection did not notice the exit")
	}
}

func TestRelayPublishes(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(nil)
	events, unsubscribe := hub.Subscribe(8)
	defer unsubscribe()

	ctx := context.Background()
	relay := NewRelay("foo", "/projects/p", hub, nil)

	require.NoError(t, relay.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         "file:///projects/p/a.foo",
		Diagnostics: []protocol.Diagnostic{{Message: "bad"}},
	}))
	e := <-events
	assert.Equal(t, notify.Diagnostics, e.Kind)
	assert.Equal(t, "foo", e.ServerID)
	assert.Equal(t, "/projects/p", e.Project)
	params, ok := e.Payload.(*protocol.PublishDiagnosticsParams)
	require.True(t, ok)
	assert.Equal(t, "bad", params.Diagnostics[0].Message)

	require.NoError(t, relay.LogMessage(ctx, &protocol.LogMessageParams{Type: protocol.MessageTypeWarning, Message: "careful"}))
	e = <-events
	assert.Equal(t, notify.LogMessage, e.Kind)
	assert.Equal(t, "careful", e.Message)

	item, err := relay.ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{Message: "pick one"})
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, notify.ShowMessage, (<-events).Kind)

	config, err := relay.Configuration(ctx, &protocol.ConfigurationParams{Items: []protocol.ConfigurationItem{{}, {}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, nil}, config)

	applied, err := relay.ApplyEdit(ctx, &protocol.ApplyWorkspaceEditParams{})
	require.NoError(t, err)
	assert.False(t, applied)
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap/zaptest"

	"github.com/pulumi/lsp-dispatch/sdk/internal/lsptest"
	"github.com/pulumi/lsp-dispatch/sdk/language"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/project"
	"github.com/pulumi/lsp-dispatch/sdk/registry"
	"github.com/pulumi/lsp-dispatch/sdk/service"
)

type fixture struct {
	server   *httptest.Server
	hub      *notify.Hub
	launcher *lsptest.Launcher
	hovered  chan protocol.DocumentURI
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t).Sugar()
	f := &fixture{
		hub:     notify.NewHub(logger),
		hovered: make(chan protocol.DocumentURI, 8),
	}
	r := registry.New(registry.Options{
		Projects: project.NewResolver("", "/projects/p"),
		Timeout:  time.Second,
		Logger:   logger,
	})
	require.NoError(t, r.RegisterLanguage(language.Description{ID: "foo", Extensions: []string{"foo"}}))

	f.launcher = lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{
		HoverProvider:      true,
		ReferencesProvider: true,
	}, "foo")
	result := f.launcher.Result
	f.launcher.NewServer = func() *lsptest.Server {
		return &lsptest.Server{
			Result: result,
			OnHover: func(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
				f.hovered <- params.TextDocument.URI
				return &protocol.Hover{Contents: protocol.MarkupContent{Value: "docs"}}, nil
			},
			OnReferences: func(context.Context, *protocol.ReferenceParams) ([]protocol.Location, error) {
				return []protocol.Location{{URI: "file:///projects/p/other.foo"}}, nil
			},
		}
	}
	require.NoError(t, r.RegisterLauncher(f.launcher))

	svc := service.New(r, service.Options{Logger: logger})
	s := New(svc, f.hub, project.NewRewriter("file:///projects"), logger)
	f.server = httptest.NewServer(s.Router())
	t.Cleanup(func() {
		f.server.Close()
		svc.Close()
		r.Shutdown(context.Background())
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestInitializeAndListings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/languageserver/initialize?path=/p/main.foo", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"hoverProvider":true`)
	assert.Contains(t, body, `"textDocumentSync":1`)
	assert.Equal(t, 1, f.launcher.Launches())

	code, body = f.do(t, http.MethodGet, "/languageserver/supported", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"languageId":"foo"`)

	code, body = f.do(t, http.MethodGet, "/languageserver/registered", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"id":"foo-ls"`)
	assert.Contains(t, body, `"project":"/projects/p"`)

	code, body = f.do(t, http.MethodGet, "/languageserver/servers", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"ready"`)

	code, _ = f.do(t, http.MethodPost, "/languageserver/initialize", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRequestsRewriteURIs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	position := `{"textDocument":{"uri":"/p/main.foo"},"position":{"line":0,"character":1}}`
	code, body := f.do(t, http.MethodPost, "/textDocument/hover", position)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"value":"docs"`)
	select {
	case uri := <-f.hovered:
		assert.Equal(t, protocol.DocumentURI("file:///projects/p/main.foo"), uri)
	case <-time.After(time.Second):
		t.Fatal("hover never reached the language server")
	}

	code, body = f.do(t, http.MethodPost, "/textDocument/references", position)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"uri":"/p/other.foo"`)
	assert.NotContains(t, body, "file:///projects")
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/textDocument/hover", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/textDocument/hover",
		`{"textDocument":{"uri":"/elsewhere/main.foo"},"position":{"line":0,"character":0}}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodGet, "/textDocument/hover", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestDocumentNotifications(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/textDocument/didOpen",
		`{"textDocument":{"uri":"/p/main.foo","languageId":"foo","version":1,"text":"x"}}`)
	require.Equal(t, http.StatusOK, code, body)

	servers := f.launcher.Servers()
	require.Len(t, servers, 1)
	opened := servers[0].Opened()
	require.Len(t, opened, 1)
	assert.Equal(t, protocol.DocumentURI("file:///projects/p/main.foo"), opened[0].URI)

	code, _ = f.do(t, http.MethodPost, "/textDocument/didClose", `{"textDocument":{"uri":"/p/main.foo"}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, servers[0].Count("didClose"))
}

func TestEventsStreamRelativeURIs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/languageserver/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription starts after the upgrade, so keep publishing until
	// something arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			f.hub.Publish(notify.Event{
				Kind:     notify.Diagnostics,
				ServerID: "foo-ls",
				Payload:  &protocol.PublishDiagnosticsParams{URI: "file:///projects/p/main.foo"},
			})
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"kind":"publishDiagnostics"`)
	assert.Contains(t, string(msg), `"uri":"/p/main.foo"`)
}

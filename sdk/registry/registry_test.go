// Copyright 2022, Pulumi Corporation.  All rights reserved.

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap/zaptest"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
	"github.com/pulumi/lsp-dispatch/sdk/initializer"
	"github.com/pulumi/lsp-dispatch/sdk/internal/lsptest"
	"github.com/pulumi/lsp-dispatch/sdk/language"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/project"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

const doc = "file:///projects/p/main.foo"

func newRegistry(t *testing.T, timeout time.Duration) (*Registry, <-chan notify.Event) {
	logger := zaptest.NewLogger(t).Sugar()
	hub := notify.NewHub(logger)
	events, unsubscribe := hub.Subscribe(32)
	t.Cleanup(unsubscribe)

	r := New(Options{
		Projects:    project.NewResolver("/projects", "/projects/p"),
		Initializer: initializer.New(initializer.Options{Publisher: hub, Logger: logger}),
		Timeout:     timeout,
		Logger:      logger,
	})
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	require.NoError(t, r.RegisterLanguage(language.Description{ID: "foo", Extensions: []string{"foo"}}))
	require.NoError(t, r.RegisterLanguage(language.Description{ID: "bar", Extensions: []string{"bar"}}))
	return r, events
}

func launchFailures(events <-chan notify.Event) int {
	n := 0
	for {
		select {
		case e := <-events:
			if e.Kind == notify.LaunchFailed {
				n++
			}
		default:
			return n
		}
	}
}

func TestEnsureInitializedLaunchesMatchingServer(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, time.Second)
	foo := lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{HoverProvider: true}, "foo")
	require.NoError(t, r.RegisterLauncher(foo))

	caps, err := r.EnsureInitialized(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, capability.Some(true), caps.HoverProvider)
	assert.Equal(t, protocol.TextDocumentSyncKindFull, caps.TextDocumentSync)

	_, err = r.EnsureInitialized(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, foo.Launches())
	assert.Equal(t, initializer.Ready, r.State("/projects/p", "foo-ls"))
}

func TestEnsureInitializedSkipsOtherLanguages(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, time.Second)
	bar := lsptest.NewLauncher("bar-ls", protocol.ServerCapabilities{HoverProvider: true}, "bar")
	require.NoError(t, r.RegisterLauncher(bar))

	caps, err := r.EnsureInitialized(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, caps.HoverProvider.IsSome())
	assert.Equal(t, 0, bar.Launches())

	tiers, err := r.ApplicableServers(doc)
	require.NoError(t, err)
	assert.Empty(t, tiers)
}

func TestEnsureInitializedUnableToLaunch(t *testing.T) {
	t.Parallel()

	r, events := newRegistry(t, time.Second)
	foo := lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{HoverProvider: true}, "foo")
	foo.Unable = true
	require.NoError(t, r.RegisterLauncher(foo))

	for i := 0; i < 3; i++ {
		caps, err := r.EnsureInitialized(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, capability.Merge(), caps)
	}
	assert.Equal(t, 1, launchFailures(events))
	assert.Equal(t, initializer.Failed, r.State("/projects/p", "foo-ls"))
}

func TestEnsureInitializedIsBounded(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, 100*time.Millisecond)
	block := make(chan struct{})
	slow := lsptest.NewLauncher("slow-ls", protocol.ServerCapabilities{HoverProvider: true}, "foo")
	slow.NewServer = func() *lsptest.Server {
		return &lsptest.Server{Block: block, Result: slow.Result}
	}
	fast := lsptest.NewLauncher("fast-ls", protocol.ServerCapabilities{DefinitionProvider: true}, "foo")
	require.NoError(t, r.RegisterLauncher(slow))
	require.NoError(t, r.RegisterLauncher(fast))

	begin := time.Now()
	caps, err := r.EnsureInitialized(context.Background(), doc)
	require.NoError(t, err)
	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, capability.Some(true), caps.DefinitionProvider)
	assert.False(t, caps.HoverProvider.IsSome())

	close(block)
	assert.Eventually(t, func() bool {
		caps, err := r.EnsureInitialized(context.Background(), doc)
		return err == nil && caps.HoverProvider.OrElse(false)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, slow.Launches())
}

func TestApplicableServersTiers(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, time.Second)
	caps := protocol.ServerCapabilities{}
	exact := lsptest.NewLauncher("exact", caps, "foo")
	glob := lsptest.NewLauncher("glob", caps)
	glob.Desc.Filters = []server.DocumentFilter{{Pattern: "*.foo"}}
	wildcard := lsptest.NewLauncher("wildcard", caps, "*")
	other := lsptest.NewLauncher("other", caps, "bar")
	for _, l := range []*lsptest.Launcher{glob, exact, other, wildcard} {
		require.NoError(t, r.RegisterLauncher(l))
	}
	// glob becomes ready last, but was registered first.
	glob.Delay = 50 * time.Millisecond

	tiers, err := r.Servers(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	require.Len(t, tiers[0], 1)
	assert.Equal(t, "exact", tiers[0][0].ID())
	require.Len(t, tiers[1], 2)
	assert.Equal(t, "glob", tiers[1][0].ID())
	assert.Equal(t, "wildcard", tiers[1][1].ID())
	assert.Equal(t, 0, other.Launches())

	s, ok := r.Server("wildcard")
	require.True(t, ok)
	assert.Equal(t, "/projects/p", s.Project)
	_, ok = r.Server("other")
	assert.False(t, ok)
	assert.Len(t, r.Initialized(), 3)
}

func TestProjectNotFound(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, time.Second)
	foo := lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{}, "foo")
	require.NoError(t, r.RegisterLauncher(foo))

	_, err := r.EnsureInitialized(context.Background(), "file:///elsewhere/main.foo")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
	_, err = r.ApplicableServers("file:///elsewhere/main.foo")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
	assert.Equal(t, 0, foo.Launches())
}

func TestRegisterLauncher(t *testing.T) {
	t.Parallel()

	r, _ := newRegistry(t, time.Second)
	require.NoError(t, r.RegisterLauncher(lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{}, "foo")))
	assert.Error(t, r.RegisterLauncher(lsptest.NewLauncher("foo-ls", protocol.ServerCapabilities{}, "bar")))
	assert.Error(t, r.RegisterLauncher(lsptest.NewLauncher("", protocol.ServerCapabilities{})))

	ids := []string{}
	for _, d := range r.Descriptions() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"foo-ls"}, ids)
	assert.Len(t, r.Languages(), 2)
	assert.Equal(t, "bar", r.LanguageID("/projects/p/x.bar"))
}

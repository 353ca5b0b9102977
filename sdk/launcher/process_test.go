// Copyright 2022, Pulumi Corporation.  All rights reserved.

package launcher

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pulumi/lsp-dispatch/sdk/config"
	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

func TestNewProcess(t *testing.T) {
	t.Parallel()

	p, err := NewProcess(&server.Description{ID: "foo", LanguageIDs: []string{"foo"}},
		`foo-ls --stdio --name "my server"`, []string{"--verbose"}, map[string]string{"B": "2", "A": "1"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-ls", "--stdio", "--name", "my server", "--verbose"}, p.Argv())
	assert.Equal(t, []string{"A=1", "B=2"}, p.env)
	assert.Equal(t, "foo", p.Description().ID)

	_, err = NewProcess(&server.Description{ID: "foo"}, `foo-ls "unterminated`, nil, nil, "", nil)
	assert.Error(t, err)
	_, err = NewProcess(&server.Description{ID: "foo"}, "", nil, nil, "", nil)
	assert.Error(t, err)
	_, err = NewProcess(&server.Description{}, "foo-ls", nil, nil, "", nil)
	assert.Error(t, err)
}

func TestIsAbleToLaunch(t *testing.T) {
	t.Parallel()

	missing, err := NewProcess(&server.Description{ID: "missing"}, "definitely-not-a-language-server-binary", nil, nil, "", nil)
	require.NoError(t, err)
	assert.False(t, missing.IsAbleToLaunch())

	_, err = missing.Launch(context.Background(), t.TempDir(), lsp.NewRelay("missing", "", notify.Discard, nil))
	assert.Error(t, err)
}

func TestExitedProcessClosesConnection(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true is not available")
	}
	p, err := NewProcess(&server.Description{ID: "true"}, "true", nil, nil, "", zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.True(t, p.IsAbleToLaunch())

	conn, err := p.Launch(context.Background(), t.TempDir(), lsp.NewRelay("true", "", notify.Discard, nil))
	require.NoError(t, err)

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "connection outlived the process")
	}
	_ = conn.Close()
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	p, err := FromConfig(config.Server{
		ID:          "yaml",
		Command:     "yaml-language-server --stdio",
		Env:         []string{"NODE_OPTIONS=--max-old-space-size=512"},
		LanguageIDs: []string{"yaml"},
		Filters:     []config.Filter{{Pattern: "Pulumi.*.yaml"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"yaml-language-server", "--stdio"}, p.Argv())
	assert.Equal(t, []string{"NODE_OPTIONS=--max-old-space-size=512"}, p.env)
	assert.Equal(t, server.PartialMatch,
		server.MatchScore(p.Description(), "file:///projects/p/Pulumi.dev.yaml", ""))
}

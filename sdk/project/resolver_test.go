// Copyright 2022, Pulumi Corporation.  All rights reserved.

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	r := NewResolver("/projects", "/projects/a", "/projects/a/nested", "/projects/ab")

	tests := []struct {
		document string
		expected string
	}{
		{"file:///projects/a/main.foo", "/projects/a"},
		{"file:///projects/a/nested/x/main.foo", "/projects/a/nested"},
		{"file:///projects/ab/main.foo", "/projects/ab"},
		{"/projects/a", "/projects/a"},
		{"file:///projects/other/main.foo", "/projects"},
	}
	for _, tt := range tests {
		root, err := r.Resolve(tt.document)
		require.NoError(t, err, tt.document)
		assert.Equal(t, tt.expected, root, tt.document)
	}

	_, err := r.Resolve("file:///elsewhere/main.foo")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	var notFound *ProjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "file:///elsewhere/main.foo", notFound.Path)

	_, err = r.Resolve("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestResolveWithoutWorkspace(t *testing.T) {
	t.Parallel()

	r := NewResolver("", "/projects/a")
	_, err := r.Resolve("file:///projects/b/main.foo")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpha"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0o600))

	r := NewResolver(dir)
	require.NoError(t, r.Discover())
	assert.Equal(t, []string{filepath.ToSlash(filepath.Join(dir, "alpha"))}, r.Projects())
}

func TestRewriterRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRewriter("file:///projects")
	for _, p := range []string{"/a/main.foo", "/a b/c.foo", "", "/x"} {
		assert.Equal(t, p, r.Strip(r.Prefix(p)))
	}
	assert.Equal(t, "file:///projects/a/main.foo", r.Prefix("/a/main.foo"))
	assert.Equal(t, "file:///projects/a/main.foo", r.Prefix("file:///projects/a/main.foo"))
}

func TestRewriterPathBoundary(t *testing.T) {
	t.Parallel()

	r := NewRewriter("file:///projects")
	assert.Equal(t, "file:///projects/a.go", r.Prefix("a.go"))
	assert.Equal(t, "/a.go", r.Strip(r.Prefix("a.go")))
	assert.Equal(t, "file:///projects2/a.go", r.Strip("file:///projects2/a.go"))
	assert.Equal(t, "file:///projects2/a.go", r.Prefix("file:///projects2/a.go"))
	assert.Equal(t, "", r.Strip("file:///projects"))
}

func TestRewriterWalk(t *testing.T) {
	t.Parallel()

	r := NewRewriter("file:///projects/")
	v := map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": "/a/main.foo"},
		"position":     map[string]interface{}{"line": float64(1)},
		"locations": []interface{}{
			map[string]interface{}{"uri": "/a/b.foo"},
			map[string]interface{}{"targetUri": "/a/c.foo"},
		},
		"changes": map[string]interface{}{
			"/a/main.foo": []interface{}{map[string]interface{}{"newText": "/a/main.foo"}},
		},
	}

	prefixed := r.PrefixAll(v).(map[string]interface{})
	assert.Equal(t, "file:///projects/a/main.foo", prefixed["textDocument"].(map[string]interface{})["uri"])
	locations := prefixed["locations"].([]interface{})
	assert.Equal(t, "file:///projects/a/b.foo", locations[0].(map[string]interface{})["uri"])
	assert.Equal(t, "file:///projects/a/c.foo", locations[1].(map[string]interface{})["targetUri"])
	changes := prefixed["changes"].(map[string]interface{})
	require.Contains(t, changes, "file:///projects/a/main.foo")
	edit := changes["file:///projects/a/main.foo"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "/a/main.foo", edit["newText"])

	stripped := r.StripAll(prefixed).(map[string]interface{})
	assert.Equal(t, "/a/main.foo", stripped["textDocument"].(map[string]interface{})["uri"])
	assert.Contains(t, stripped["changes"], "/a/main.foo")
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The project package maps documents to the project that owns them, and
// converts between project relative and absolute document URIs.
package project

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"
)

// ErrProjectNotFound is matched by every ProjectNotFoundError.
var ErrProjectNotFound = errors.New("project not found")

// ProjectNotFoundError is returned when a document is outside of every known
// project.
type ProjectNotFoundError struct {
	Path string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found for %q", e.Path)
}

func (e *ProjectNotFoundError) Is(target error) bool {
	return target == ErrProjectNotFound
}

// Resolver finds the project of a document by longest prefix. It is safe for
// concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	workspace string
	roots     []string
}

// NewResolver creates a resolver for projects below workspace. When workspace
// is not empty, it is the project of last resort for documents beneath it.
func NewResolver(workspace string, roots ...string) *Resolver {
	r := &Resolver{}
	if workspace != "" {
		r.workspace = clean(workspace)
	}
	for _, root := range roots {
		r.Add(root)
	}
	return r
}

// Add a project root.
func (r *Resolver) Add(root string) {
	root = clean(root)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roots {
		if existing == root {
			return
		}
	}
	r.roots = append(r.roots, root)
	// Longest first, so the most specific project wins.
	sort.SliceStable(r.roots, func(i, j int) bool { return len(r.roots[i]) > len(r.roots[j]) })
}

// Discover adds every directory directly below the workspace as a project.
func (r *Resolver) Discover() error {
	if r.workspace == "" {
		return nil
	}
	entries, err := os.ReadDir(filepath.FromSlash(r.workspace))
	if err != nil {
		return fmt.Errorf("discovering projects in %s: %w", r.workspace, err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			r.Add(path.Join(r.workspace, e.Name()))
		}
	}
	return nil
}

// Resolve the project root of a document path or file URI.
func (r *Resolver) Resolve(document string) (string, error) {
	p, ok := FilePath(document)
	if !ok {
		return "", &ProjectNotFoundError{Path: document}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, root := range r.roots {
		if within(p, root) {
			return root, nil
		}
	}
	if r.workspace != "" && within(p, r.workspace) {
		return r.workspace, nil
	}
	return "", &ProjectNotFoundError{Path: document}
}

// Projects returns the known project roots, most specific first.
func (r *Resolver) Projects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.roots...)
}

// FilePath converts a file URI or an absolute path to a clean slash separated
// path. Other URIs are rejected.
func FilePath(document string) (string, bool) {
	switch {
	case strings.HasPrefix(document, "file:"):
		return clean(uri.URI(document).Filename()), true
	case strings.HasPrefix(document, "/"):
		return clean(document), true
	default:
		return "", false
	}
}

func within(p, root string) bool {
	return p == root || strings.HasPrefix(p, strings.TrimSuffix(root, "/")+"/")
}

func clean(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

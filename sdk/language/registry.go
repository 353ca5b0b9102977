// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The language package maps documents to language ids.
package language

import (
	"fmt"
	"path"
	"strings"
	"sync"
)

// Description is a language the dispatcher knows about.
type Description struct {
	ID           string   `json:"languageId"`
	Extensions   []string `json:"fileExtensions,omitempty"`
	FileNames    []string `json:"fileNames,omitempty"`
	MimeTypes    []string `json:"mimeTypes,omitempty"`
	Highlighting string   `json:"highlightingConfiguration,omitempty"`
}

// Registry is an append-only set of languages, keyed by id. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	languages []Description
	ids       map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: map[string]struct{}{}}
}

// Register a language. Registering an id twice keeps the first description
// and reports false.
func (r *Registry) Register(d Description) (bool, error) {
	if d.ID == "" {
		return false, fmt.Errorf("language description must have an id")
	}
	d.Extensions = normalizeExtensions(d.Extensions)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[d.ID]; ok {
		return false, nil
	}
	r.ids[d.ID] = struct{}{}
	r.languages = append(r.languages, d)
	return true, nil
}

// Find the language of a document. Exact file names are tried across all
// languages before extensions are. Ties go to the earliest registration.
func (r *Registry) Find(documentPath string) (Description, bool) {
	base := path.Base(documentPath)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.languages {
		for _, name := range l.FileNames {
			if name == base {
				return l, true
			}
		}
	}
	for _, l := range r.languages {
		for _, ext := range l.Extensions {
			if strings.HasSuffix(base, "."+ext) {
				return l, true
			}
		}
	}
	return Description{}, false
}

// LanguageID is the id of the language of documentPath, or "" if unknown.
func (r *Registry) LanguageID(documentPath string) string {
	l, _ := r.Find(documentPath)
	return l.ID
}

// All registered languages, in registration order.
func (r *Registry) All() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Description(nil), r.languages...)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e = strings.TrimPrefix(e, "."); e != "" {
			out = append(out, e)
		}
	}
	return out
}

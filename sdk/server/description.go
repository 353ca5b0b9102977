// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The server package describes language servers: what documents they handle,
// how they are launched, and what a successfully initialized server looks like.
package server

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Patterns starting with this prefix are regular expressions. All other
// patterns are globs.
const regexPrefix = "regex:"

// AnyLanguage matches every language id with a partial score.
const AnyLanguage = "*"

// A DocumentFilter selects documents by language, path pattern and URI scheme.
// Absent fields do not participate in matching.
type DocumentFilter struct {
	LanguageID string `json:"languageId,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
	Scheme     string `json:"scheme,omitempty"`
}

// Description is the static, immutable description of a language server.
type Description struct {
	ID          string           `json:"id"`
	LanguageIDs []string         `json:"languageIds,omitempty"`
	Filters     []DocumentFilter `json:"documentFilters,omitempty"`
}

// Validate checks that the description can be registered.
func (d *Description) Validate() error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("language server description must have an id")
	}
	for i, f := range d.Filters {
		if f.Pattern == "" {
			continue
		}
		if expr, ok := strings.CutPrefix(f.Pattern, regexPrefix); ok {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("server %s: filter %d: invalid regular expression: %w", d.ID, i, err)
			}
		} else if !doublestar.ValidatePattern(f.Pattern) {
			return fmt.Errorf("server %s: filter %d: invalid glob %q", d.ID, i, f.Pattern)
		}
	}
	return nil
}

func (d *Description) String() string {
	return d.ID
}

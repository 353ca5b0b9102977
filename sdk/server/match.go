// Copyright 2022, Pulumi Corporation.  All rights reserved.

package server

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.lsp.dev/uri"
)

const (
	NoMatch      = 0
	PartialMatch = 5
	ExactMatch   = 10
)

var patterns sync.Map // string -> *regexp.Regexp

// MatchScore reports how well a server described by d handles the document at
// documentPath with the given language id. It returns NoMatch, PartialMatch or
// ExactMatch, and is a pure function of its inputs.
//
// The server's own language ids are consulted first, then each filter in
// order. An exact hit anywhere returns immediately.
func MatchScore(d *Description, documentPath, languageID string) int {
	score := matchLanguage(d.LanguageIDs, languageID)
	if score == ExactMatch {
		return score
	}
	for _, f := range d.Filters {
		if f.LanguageID != "" {
			if s := matchLanguage([]string{f.LanguageID}, languageID); s > score {
				score = s
			}
			if score == ExactMatch {
				return score
			}
		}
		if f.Scheme != "" && strings.HasPrefix(documentPath, f.Scheme+":") {
			return ExactMatch
		}
		if f.Pattern != "" {
			s := matchPattern(f.Pattern, documentPath)
			if s == ExactMatch {
				return s
			}
			if s > score {
				score = s
			}
		}
	}
	return score
}

// Without a language id, only the scheme and pattern can match.
func matchLanguage(declared []string, languageID string) int {
	if languageID == "" {
		return NoMatch
	}
	score := NoMatch
	for _, id := range declared {
		if id == languageID {
			return ExactMatch
		}
		if id == AnyLanguage {
			score = PartialMatch
		}
	}
	return score
}

func matchPattern(pattern, documentPath string) int {
	file := filePath(documentPath)
	if pattern == documentPath || pattern == file {
		return ExactMatch
	}
	if expr, ok := strings.CutPrefix(pattern, regexPrefix); ok {
		re, err := compile(expr)
		if err == nil && (re.MatchString(file) || re.MatchString(documentPath)) {
			return PartialMatch
		}
		return NoMatch
	}
	// A glob without a separator is matched against the base name only.
	target := file
	if !strings.Contains(pattern, "/") {
		target = path.Base(target)
	}
	if ok, err := doublestar.Match(pattern, target); err == nil && ok {
		return PartialMatch
	}
	return NoMatch
}

// filePath turns file URIs into slash separated file paths. Anything else is
// returned unchanged.
func filePath(documentPath string) string {
	if strings.HasPrefix(documentPath, "file:") {
		return filepath.ToSlash(uri.URI(documentPath).Filename())
	}
	return documentPath
}

func compile(expr string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}

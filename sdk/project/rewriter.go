// Copyright 2022, Pulumi Corporation.  All rights reserved.

package project

import "strings"

// Keys whose string values are document URIs.
var uriKeys = map[string]struct{}{
	"uri":       {},
	"targetUri": {},
	"oldUri":    {},
	"newUri":    {},
	"rootUri":   {},
}

// Rewriter converts between the project relative URIs used by remote clients
// and the absolute URIs used by language servers.
type Rewriter struct {
	prefix string
}

func NewRewriter(prefix string) Rewriter {
	return Rewriter{prefix: strings.TrimSuffix(prefix, "/")}
}

// Prefix makes a relative URI absolute. URIs that are already absolute are
// returned unchanged.
func (r Rewriter) Prefix(relative string) string {
	if r.prefix == "" || r.under(relative) || strings.Contains(relative, "://") {
		return relative
	}
	if relative != "" && !strings.HasPrefix(relative, "/") {
		relative = "/" + relative
	}
	return r.prefix + relative
}

// Strip is the inverse of Prefix. URIs outside the prefix are returned
// unchanged.
func (r Rewriter) Strip(absolute string) string {
	if r.prefix == "" || !r.under(absolute) {
		return absolute
	}
	return strings.TrimPrefix(absolute, r.prefix)
}

// under reports whether uri is the prefix itself or a path below it.
func (r Rewriter) under(uri string) bool {
	rest, ok := strings.CutPrefix(uri, r.prefix)
	return ok && (rest == "" || strings.HasPrefix(rest, "/"))
}

// PrefixAll applies Prefix to every URI in a decoded JSON value.
func (r Rewriter) PrefixAll(v interface{}) interface{} {
	return walk(v, r.Prefix)
}

// StripAll applies Strip to every URI in a decoded JSON value.
func (r Rewriter) StripAll(v interface{}) interface{} {
	return walk(v, r.Strip)
}

func walk(v interface{}, f func(string) string) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		for k, child := range v {
			if s, ok := child.(string); ok {
				if _, isURI := uriKeys[k]; isURI {
					v[k] = f(s)
					continue
				}
			}
			if k == "changes" {
				// WorkspaceEdit.changes is keyed by document URI.
				if changes, ok := child.(map[string]interface{}); ok {
					rewritten := make(map[string]interface{}, len(changes))
					for u, edits := range changes {
						rewritten[f(u)] = walk(edits, f)
					}
					v[k] = rewritten
					continue
				}
			}
			v[k] = walk(child, f)
		}
		return v
	case []interface{}:
		for i, child := range v {
			v[i] = walk(child, f)
		}
		return v
	default:
		return v
	}
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// A thread-safe text document that tracks the edits an editor sends, so it
// can be replayed to servers that start after the document was opened.
type Document struct {
	// Any method that reads `text` needs to acquire a read lock of `m`. To
	// mutate `text`, a write lock is required.
	m    sync.RWMutex
	text string
	// NOTE: uri should be considered immutable. This allows us to fetch is
	// without a lock.
	uri        protocol.DocumentURI
	languageID protocol.LanguageIdentifier
	version    int32
}

// Create a new document from a TextDocumentItem.
func NewDocument(item protocol.TextDocumentItem) *Document {
	return &Document{
		text:       item.Text,
		uri:        item.URI,
		version:    item.Version,
		languageID: item.LanguageID,
	}
}

// Update the document to version with the given changes. Changes are applied
// in order; on error the document is left unchanged.
func (d *Document) AcceptChanges(version int32, changes []protocol.TextDocumentContentChangeEvent) error {
	d.m.Lock()
	defer d.m.Unlock()
	text := d.text
	for _, change := range changes {
		var err error
		text, err = acceptChange(text, change)
		if err != nil {
			return err
		}
	}
	d.text = text
	d.version = version
	return nil
}

// Retrieve the URI of the Document.
func (d *Document) URI() protocol.DocumentURI {
	return d.uri
}

func (d *Document) LanguageID() protocol.LanguageIdentifier {
	return d.languageID
}

func (d *Document) Version() int32 {
	d.m.RLock()
	defer d.m.RUnlock()
	return d.version
}

// Returns the whole document as a string.
func (d *Document) String() string {
	d.m.RLock()
	defer d.m.RUnlock()
	return d.text
}

// Item is the document as it would be sent in textDocument/didOpen.
func (d *Document) Item() protocol.TextDocumentItem {
	d.m.RLock()
	defer d.m.RUnlock()
	return protocol.TextDocumentItem{
		URI:        d.uri,
		LanguageID: d.languageID,
		Version:    d.version,
		Text:       d.text,
	}
}

// acceptChange applies a single change to text. A change without a range
// replaces the whole document.
func acceptChange(text string, change protocol.TextDocumentContentChangeEvent) (string, error) {
	var defRange protocol.Range
	if change.Range == defRange && change.RangeLength == 0 {
		return change.Text, nil
	}
	if err := validateRange(change.Range); err != nil {
		return "", err
	}
	start, err := offset(text, change.Range.Start)
	if err != nil {
		return "", newInvalidRange(change.Range, "start: %v", err)
	}
	end, err := offset(text, change.Range.End)
	if err != nil {
		return "", newInvalidRange(change.Range, "end: %v", err)
	}
	return text[:start] + change.Text + text[end:], nil
}

// offset converts a position into a byte offset into text. Characters count
// UTF-16 code units, and a character one past the end of a line is allowed.
func offset(text string, pos protocol.Position) (int, error) {
	line := int(pos.Line)
	off := 0
	for i := 0; i < line; i++ {
		next := strings.IndexByte(text[off:], '\n')
		if next < 0 {
			return 0, fmt.Errorf("line %d out of bounds for document with %d lines", line, i+1)
		}
		off += next + 1
	}
	lineText := text[off:]
	if end := strings.IndexByte(lineText, '\n'); end >= 0 {
		lineText = lineText[:end]
	}
	units := 0
	for i, r := range lineText {
		if units >= int(pos.Character) {
			if units > int(pos.Character) {
				return 0, fmt.Errorf("character %d splits a surrogate pair on line %d", pos.Character, line)
			}
			return off + i, nil
		}
		units += utf16.RuneLen(r)
	}
	if int(pos.Character) > units {
		return 0, fmt.Errorf("character %d out of bounds on line %d (len = %d)", pos.Character, line, units)
	}
	return off + len(lineText), nil
}

func validateRange(r protocol.Range) error {
	if r.Start.Line > r.End.Line {
		return newInvalidRange(r, "start line %d > end line %d", r.Start.Line, r.End.Line)
	}
	if r.Start.Line == r.End.Line &&
		r.Start.Character > r.End.Character {
		return newInvalidRange(r, "start char %d > end char %d", r.Start.Character, r.End.Character)
	}
	return nil
}

func newInvalidRange(r protocol.Range, msg string, a ...interface{}) error {
	return invalidRange{r, fmt.Sprintf(msg, a...)}
}

type invalidRange struct {
	r      protocol.Range
	reason string
}

func (ir invalidRange) Error() string {
	return "Invalid range: " + ir.reason
}

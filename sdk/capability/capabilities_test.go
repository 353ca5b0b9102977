// Copyright 2022, Pulumi Corporation.  All rights reserved.

package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.lsp.dev/protocol"
)

func TestFromProtocol(t *testing.T) {
	t.Parallel()

	caps := FromProtocol(protocol.ServerCapabilities{
		TextDocumentSync:   map[string]interface{}{"openClose": true, "change": float64(2)},
		HoverProvider:      &protocol.HoverOptions{},
		DefinitionProvider: false,
		ReferencesProvider: map[string]interface{}{"workDoneProgress": true},
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{".", ":", "."},
		},
	})

	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, caps.TextDocumentSync)
	assert.Equal(t, Some(true), caps.HoverProvider)
	assert.Equal(t, Some(false), caps.DefinitionProvider)
	assert.Equal(t, Some(true), caps.ReferencesProvider)
	assert.False(t, caps.RenameProvider.IsSome())
	assert.Equal(t, Some(CompletionOptions{TriggerCharacters: []string{".", ":"}}), caps.CompletionProvider)

	assert.Equal(t, protocol.TextDocumentSyncKindNone, FromProtocol(protocol.ServerCapabilities{}).TextDocumentSync)
	assert.Equal(t, protocol.TextDocumentSyncKindFull,
		FromProtocol(protocol.ServerCapabilities{TextDocumentSync: float64(1)}).TextDocumentSync)
}

func TestMergeFlags(t *testing.T) {
	t.Parallel()

	a := Capabilities{HoverProvider: Some(false), DefinitionProvider: Some(true)}
	b := Capabilities{HoverProvider: Some(true), TextDocumentSync: protocol.TextDocumentSyncKindNone}

	merged := Merge(a, b)
	assert.Equal(t, Some(true), merged.HoverProvider)
	assert.Equal(t, Some(true), merged.DefinitionProvider)
	assert.Equal(t, Some(false), Merge(a).HoverProvider)
	assert.False(t, merged.RenameProvider.IsSome())
	assert.Equal(t, protocol.TextDocumentSyncKindFull, merged.TextDocumentSync)
}

func TestMergeEmpty(t *testing.T) {
	t.Parallel()

	merged := Merge()
	assert.Equal(t, protocol.TextDocumentSyncKindFull, merged.TextDocumentSync)
	p := merged.Protocol()
	assert.Nil(t, p.HoverProvider)
	assert.Nil(t, p.CompletionProvider)
	assert.Equal(t, protocol.TextDocumentSyncKindFull, p.TextDocumentSync)
}

func TestMergeTriggerCharacters(t *testing.T) {
	t.Parallel()

	a := Capabilities{
		CompletionProvider:       Some(CompletionOptions{TriggerCharacters: []string{"."}}),
		SignatureHelpProvider:    Some(SignatureHelpOptions{TriggerCharacters: []string{"("}}),
		OnTypeFormattingProvider: Some(OnTypeFormattingOptions{FirstTriggerCharacter: "}"}),
	}
	b := Capabilities{
		CompletionProvider:       Some(CompletionOptions{ResolveProvider: true, TriggerCharacters: []string{":", "."}}),
		SignatureHelpProvider:    Some(SignatureHelpOptions{TriggerCharacters: []string{","}}),
		OnTypeFormattingProvider: Some(OnTypeFormattingOptions{FirstTriggerCharacter: ";", MoreTriggerCharacter: []string{"}"}}),
	}

	merged := Merge(a, b)
	assert.Equal(t, Some(CompletionOptions{ResolveProvider: true, TriggerCharacters: []string{".", ":"}}), merged.CompletionProvider)
	assert.Equal(t, Some(SignatureHelpOptions{TriggerCharacters: []string{"(", ","}}), merged.SignatureHelpProvider)
	assert.Equal(t, Some(OnTypeFormattingOptions{FirstTriggerCharacter: ";", MoreTriggerCharacter: []string{"}"}}),
		merged.OnTypeFormattingProvider)

	p := merged.Protocol()
	assert.Equal(t, []string{".", ":"}, p.CompletionProvider.TriggerCharacters)
	assert.True(t, p.CompletionProvider.ResolveProvider)
	assert.Equal(t, ";", p.DocumentOnTypeFormattingProvider.FirstTriggerCharacter)
}

func TestMergeIsCommutativeAndAssociative(t *testing.T) {
	t.Parallel()

	samples := []Capabilities{
		{HoverProvider: Some(true), CompletionProvider: Some(CompletionOptions{TriggerCharacters: []string{"."}})},
		{HoverProvider: Some(false), ReferencesProvider: Some(true),
			OnTypeFormattingProvider: Some(OnTypeFormattingOptions{FirstTriggerCharacter: "\n"})},
		{RenameProvider: Some(false), CompletionProvider: Some(CompletionOptions{ResolveProvider: true, TriggerCharacters: []string{"<", "."}}),
			OnTypeFormattingProvider: Some(OnTypeFormattingOptions{FirstTriggerCharacter: "}", MoreTriggerCharacter: []string{";"}})},
		{},
	}

	for _, a := range samples {
		for _, b := range samples {
			assert.Equal(t, Merge(a, b), Merge(b, a))
			for _, c := range samples {
				assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))
			}
		}
	}
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The capability package normalizes the capabilities advertised by language
// servers and merges them into a single overlay.
package capability

import (
	"sort"

	"go.lsp.dev/protocol"
)

type CompletionOptions struct {
	ResolveProvider   bool
	TriggerCharacters []string
}

type SignatureHelpOptions struct {
	TriggerCharacters   []string
	RetriggerCharacters []string
}

type CodeLensOptions struct {
	ResolveProvider bool
}

type OnTypeFormattingOptions struct {
	FirstTriggerCharacter string
	MoreTriggerCharacter  []string
}

// Capabilities is the normalized view of a protocol.ServerCapabilities.
type Capabilities struct {
	TextDocumentSync protocol.TextDocumentSyncKind

	HoverProvider                   Option[bool]
	DefinitionProvider              Option[bool]
	TypeDefinitionProvider          Option[bool]
	ImplementationProvider          Option[bool]
	ReferencesProvider              Option[bool]
	DocumentHighlightProvider       Option[bool]
	DocumentSymbolProvider          Option[bool]
	WorkspaceSymbolProvider         Option[bool]
	CodeActionProvider              Option[bool]
	DocumentFormattingProvider      Option[bool]
	DocumentRangeFormattingProvider Option[bool]
	RenameProvider                  Option[bool]

	CompletionProvider       Option[CompletionOptions]
	SignatureHelpProvider    Option[SignatureHelpOptions]
	CodeLensProvider         Option[CodeLensOptions]
	OnTypeFormattingProvider Option[OnTypeFormattingOptions]
}

// FromProtocol normalizes the capabilities a server returned from
// initialize. Providers that are set to an options object count as enabled.
func FromProtocol(caps protocol.ServerCapabilities) Capabilities {
	c := Capabilities{
		TextDocumentSync:                syncKind(caps.TextDocumentSync),
		HoverProvider:                   flag(caps.HoverProvider),
		DefinitionProvider:              flag(caps.DefinitionProvider),
		TypeDefinitionProvider:          flag(caps.TypeDefinitionProvider),
		ImplementationProvider:          flag(caps.ImplementationProvider),
		ReferencesProvider:              flag(caps.ReferencesProvider),
		DocumentHighlightProvider:       flag(caps.DocumentHighlightProvider),
		DocumentSymbolProvider:          flag(caps.DocumentSymbolProvider),
		WorkspaceSymbolProvider:         flag(caps.WorkspaceSymbolProvider),
		CodeActionProvider:              flag(caps.CodeActionProvider),
		DocumentFormattingProvider:      flag(caps.DocumentFormattingProvider),
		DocumentRangeFormattingProvider: flag(caps.DocumentRangeFormattingProvider),
		RenameProvider:                  flag(caps.RenameProvider),
	}
	if p := caps.CompletionProvider; p != nil {
		c.CompletionProvider = Some(CompletionOptions{
			ResolveProvider:   p.ResolveProvider,
			TriggerCharacters: union(p.TriggerCharacters),
		})
	}
	if p := caps.SignatureHelpProvider; p != nil {
		c.SignatureHelpProvider = Some(SignatureHelpOptions{
			TriggerCharacters:   union(p.TriggerCharacters),
			RetriggerCharacters: union(p.RetriggerCharacters),
		})
	}
	if p := caps.CodeLensProvider; p != nil {
		c.CodeLensProvider = Some(CodeLensOptions{ResolveProvider: p.ResolveProvider})
	}
	if p := caps.DocumentOnTypeFormattingProvider; p != nil {
		c.OnTypeFormattingProvider = Some(onType(append([]string{p.FirstTriggerCharacter}, p.MoreTriggerCharacter...)))
	}
	return c
}

// Merge overlays any number of capabilities. Flags are OR'ed, trigger
// characters are unioned, and the merged sync kind is always Full. Merge is
// commutative and associative.
func Merge(caps ...Capabilities) Capabilities {
	merged := Capabilities{TextDocumentSync: protocol.TextDocumentSyncKindFull}
	for _, c := range caps {
		merged = merge(merged, c)
	}
	return merged
}

func merge(a, b Capabilities) Capabilities {
	return Capabilities{
		TextDocumentSync:                protocol.TextDocumentSyncKindFull,
		HoverProvider:                   or(a.HoverProvider, b.HoverProvider),
		DefinitionProvider:              or(a.DefinitionProvider, b.DefinitionProvider),
		TypeDefinitionProvider:          or(a.TypeDefinitionProvider, b.TypeDefinitionProvider),
		ImplementationProvider:          or(a.ImplementationProvider, b.ImplementationProvider),
		ReferencesProvider:              or(a.ReferencesProvider, b.ReferencesProvider),
		DocumentHighlightProvider:       or(a.DocumentHighlightProvider, b.DocumentHighlightProvider),
		DocumentSymbolProvider:          or(a.DocumentSymbolProvider, b.DocumentSymbolProvider),
		WorkspaceSymbolProvider:         or(a.WorkspaceSymbolProvider, b.WorkspaceSymbolProvider),
		CodeActionProvider:              or(a.CodeActionProvider, b.CodeActionProvider),
		DocumentFormattingProvider:      or(a.DocumentFormattingProvider, b.DocumentFormattingProvider),
		DocumentRangeFormattingProvider: or(a.DocumentRangeFormattingProvider, b.DocumentRangeFormattingProvider),
		RenameProvider:                  or(a.RenameProvider, b.RenameProvider),
		CompletionProvider: combine(a.CompletionProvider, b.CompletionProvider,
			func(x, y CompletionOptions) CompletionOptions {
				return CompletionOptions{
					ResolveProvider:   x.ResolveProvider || y.ResolveProvider,
					TriggerCharacters: union(x.TriggerCharacters, y.TriggerCharacters),
				}
			}),
		SignatureHelpProvider: combine(a.SignatureHelpProvider, b.SignatureHelpProvider,
			func(x, y SignatureHelpOptions) SignatureHelpOptions {
				return SignatureHelpOptions{
					TriggerCharacters:   union(x.TriggerCharacters, y.TriggerCharacters),
					RetriggerCharacters: union(x.RetriggerCharacters, y.RetriggerCharacters),
				}
			}),
		CodeLensProvider: combine(a.CodeLensProvider, b.CodeLensProvider,
			func(x, y CodeLensOptions) CodeLensOptions {
				return CodeLensOptions{ResolveProvider: x.ResolveProvider || y.ResolveProvider}
			}),
		OnTypeFormattingProvider: combine(a.OnTypeFormattingProvider, b.OnTypeFormattingProvider,
			func(x, y OnTypeFormattingOptions) OnTypeFormattingOptions {
				return onType(append(x.characters(), y.characters()...))
			}),
	}
}

// Protocol renders the capabilities for an initialize response. Absent
// providers are left unset.
func (c Capabilities) Protocol() protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{
		TextDocumentSync:                c.TextDocumentSync,
		HoverProvider:                   render(c.HoverProvider),
		DefinitionProvider:              render(c.DefinitionProvider),
		TypeDefinitionProvider:          render(c.TypeDefinitionProvider),
		ImplementationProvider:          render(c.ImplementationProvider),
		ReferencesProvider:              render(c.ReferencesProvider),
		DocumentHighlightProvider:       render(c.DocumentHighlightProvider),
		DocumentSymbolProvider:          render(c.DocumentSymbolProvider),
		WorkspaceSymbolProvider:         render(c.WorkspaceSymbolProvider),
		CodeActionProvider:              render(c.CodeActionProvider),
		DocumentFormattingProvider:      render(c.DocumentFormattingProvider),
		DocumentRangeFormattingProvider: render(c.DocumentRangeFormattingProvider),
		RenameProvider:                  render(c.RenameProvider),
	}
	if o, ok := c.CompletionProvider.Get(); ok {
		caps.CompletionProvider = &protocol.CompletionOptions{
			ResolveProvider:   o.ResolveProvider,
			TriggerCharacters: o.TriggerCharacters,
		}
	}
	if o, ok := c.SignatureHelpProvider.Get(); ok {
		caps.SignatureHelpProvider = &protocol.SignatureHelpOptions{
			TriggerCharacters:   o.TriggerCharacters,
			RetriggerCharacters: o.RetriggerCharacters,
		}
	}
	if o, ok := c.CodeLensProvider.Get(); ok {
		caps.CodeLensProvider = &protocol.CodeLensOptions{ResolveProvider: o.ResolveProvider}
	}
	if o, ok := c.OnTypeFormattingProvider.Get(); ok {
		caps.DocumentOnTypeFormattingProvider = &protocol.DocumentOnTypeFormattingOptions{
			FirstTriggerCharacter: o.FirstTriggerCharacter,
			MoreTriggerCharacter:  o.MoreTriggerCharacter,
		}
	}
	return caps
}

func render(o Option[bool]) interface{} {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

// or joins flags so that None < false < true.
func or(a, b Option[bool]) Option[bool] {
	return combine(a, b, func(x, y bool) bool { return x || y })
}

// flag normalizes a provider field. Servers may send a bool or an options
// object, which is decoded as a map when it comes off the wire.
func flag(v interface{}) Option[bool] {
	switch v := v.(type) {
	case nil:
		return None[bool]()
	case bool:
		return Some(v)
	default:
		return Some(true)
	}
}

func syncKind(v interface{}) protocol.TextDocumentSyncKind {
	switch v := v.(type) {
	case protocol.TextDocumentSyncKind:
		return v
	case float64:
		return protocol.TextDocumentSyncKind(v)
	case int:
		return protocol.TextDocumentSyncKind(v)
	case *protocol.TextDocumentSyncOptions:
		if v != nil {
			return v.Change
		}
	case protocol.TextDocumentSyncOptions:
		return v.Change
	case map[string]interface{}:
		if change, ok := v["change"].(float64); ok {
			return protocol.TextDocumentSyncKind(change)
		}
	}
	return protocol.TextDocumentSyncKindNone
}

func (o OnTypeFormattingOptions) characters() []string {
	chars := make([]string, 0, len(o.MoreTriggerCharacter)+1)
	if o.FirstTriggerCharacter != "" {
		chars = append(chars, o.FirstTriggerCharacter)
	}
	return append(chars, o.MoreTriggerCharacter...)
}

// onType picks the smallest character as the first trigger so that merging
// does not depend on the order servers are visited in.
func onType(chars []string) OnTypeFormattingOptions {
	chars = union(chars)
	if len(chars) == 0 {
		return OnTypeFormattingOptions{}
	}
	return OnTypeFormattingOptions{
		FirstTriggerCharacter: chars[0],
		MoreTriggerCharacter:  chars[1:],
	}
}

// union returns the sorted set of non-empty strings in lists.
func union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

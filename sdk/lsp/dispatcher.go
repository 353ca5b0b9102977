// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"
	stdjson "encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// dispatcher accepts every result shape the protocol allows for requests
// whose results are unions, where protocol.ServerDispatcher only decodes one.
//
// Results are read as stdjson.RawMessage: the rpc layer decodes with its own
// json package, which only defers to types implementing json.Unmarshaler.
type dispatcher struct {
	protocol.Server
	rpc jsonrpc2.Conn
}

// Completion results are either a CompletionList or CompletionItem[].
func (d *dispatcher) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	var raw stdjson.RawMessage
	if _, err := d.rpc.Call(ctx, "textDocument/completion", params, &raw); err != nil {
		return nil, err
	}
	return decodeCompletion(raw)
}

// Definition results are a Location, Location[] or LocationLink[].
func (d *dispatcher) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	var raw stdjson.RawMessage
	if _, err := d.rpc.Call(ctx, "textDocument/definition", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func decodeCompletion(raw []byte) (*protocol.CompletionList, error) {
	switch json.Get(raw).ValueType() {
	case jsoniter.NilValue, jsoniter.InvalidValue:
		return nil, nil
	case jsoniter.ArrayValue:
		var items []protocol.CompletionItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return &protocol.CompletionList{Items: items}, nil
	default:
		var list protocol.CompletionList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return &list, nil
	}
}

type locationOrLink struct {
	URI                  protocol.DocumentURI `json:"uri"`
	Range                protocol.Range       `json:"range"`
	TargetURI            protocol.DocumentURI `json:"targetUri"`
	TargetSelectionRange protocol.Range       `json:"targetSelectionRange"`
}

func (l locationOrLink) location() protocol.Location {
	if l.TargetURI != "" {
		return protocol.Location{URI: l.TargetURI, Range: l.TargetSelectionRange}
	}
	return protocol.Location{URI: l.URI, Range: l.Range}
}

func decodeLocations(raw []byte) ([]protocol.Location, error) {
	switch json.Get(raw).ValueType() {
	case jsoniter.NilValue, jsoniter.InvalidValue:
		return nil, nil
	case jsoniter.ObjectValue:
		var l locationOrLink
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, err
		}
		return []protocol.Location{l.location()}, nil
	case jsoniter.ArrayValue:
		var ls []locationOrLink
		if err := json.Unmarshal(raw, &ls); err != nil {
			return nil, err
		}
		locations := make([]protocol.Location, len(ls))
		for i, l := range ls {
			locations[i] = l.location()
		}
		return locations, nil
	default:
		return nil, fmt.Errorf("unexpected definition result: %s", raw)
	}
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package service

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
	"github.com/pulumi/lsp-dispatch/sdk/fanout"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

// Completion items carry the id of the server that produced them in their
// data field, so completionItem/resolve finds its way back.
type itemTag struct {
	ServerID string      `json:"serverId"`
	Data     interface{} `json:"data,omitempty"`
}

func tagItem(serverID string, item protocol.CompletionItem) protocol.CompletionItem {
	item.Data = itemTag{ServerID: serverID, Data: item.Data}
	return item
}

// untagItem restores the item a server produced. Items that have been through
// JSON carry the tag as a map.
func untagItem(item protocol.CompletionItem) (string, protocol.CompletionItem, bool) {
	switch tag := item.Data.(type) {
	case itemTag:
		item.Data = tag.Data
		return tag.ServerID, item, true
	case *itemTag:
		if tag == nil {
			return "", item, false
		}
		item.Data = tag.Data
		return tag.ServerID, item, true
	case map[string]interface{}:
		id, ok := tag["serverId"].(string)
		if !ok {
			return "", item, false
		}
		item.Data = tag["data"]
		return id, item, true
	default:
		return "", item, false
	}
}

func canComplete(c capability.Capabilities) bool {
	return c.CompletionProvider.IsSome()
}

// Completion asks the best matching tier of servers first, and falls through
// to weaker tiers only while no items were found. Within a tier items from
// every server are concatenated. All tiers share one deadline.
func (s *Service) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	tiers, err := s.registry.Servers(ctx, string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	list := &protocol.CompletionList{Items: []protocol.CompletionItem{}}
	end := s.exec.Now().Add(s.timeout)
	for _, tier := range tiers {
		if ctx.Err() != nil || !s.exec.Now().Before(end) {
			break
		}
		fanout.InParallel(ctx, s.exec, tier, fanout.Operation[*server.Initialized, *protocol.CompletionList]{
			CanDo: func(srv *server.Initialized) bool { return canComplete(srv.Capabilities) },
			Start: func(ctx context.Context, srv *server.Initialized) (*protocol.CompletionList, error) {
				return srv.Server().Completion(ctx, params)
			},
			HandleResult: func(srv *server.Initialized, r *protocol.CompletionList) bool {
				if r == nil {
					return false
				}
				list.IsIncomplete = list.IsIncomplete || r.IsIncomplete
				for _, item := range r.Items {
					list.Items = append(list.Items, tagItem(srv.ID(), item))
				}
				return false
			},
		}, fanout.Budget(end, s.exec.Now()))
		if len(list.Items) > 0 {
			break
		}
	}
	return list, nil
}

// CompletionResolve sends item back to the server that produced it. Items
// whose server is gone, or that cannot be resolved, are returned as they
// came.
func (s *Service) CompletionResolve(ctx context.Context, item *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	id, original, ok := untagItem(*item)
	if !ok {
		return item, nil
	}
	srv, ok := s.registry.Server(id)
	if !ok {
		s.logger.Debugf("No server %s to resolve completion item %q", id, item.Label)
		return item, nil
	}
	if opts, ok := srv.Capabilities.CompletionProvider.Get(); !ok || !opts.ResolveProvider {
		return item, nil
	}

	result := item
	fanout.InSequence(ctx, s.exec, []*server.Initialized{srv}, fanout.Operation[*server.Initialized, *protocol.CompletionItem]{
		Start: func(ctx context.Context, srv *server.Initialized) (*protocol.CompletionItem, error) {
			return srv.Server().CompletionResolve(ctx, &original)
		},
		HandleResult: func(srv *server.Initialized, r *protocol.CompletionItem) bool {
			if r != nil {
				resolved := tagItem(srv.ID(), *r)
				result = &resolved
			}
			return true
		},
	}, s.timeout)
	return result, nil
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The service package answers LSP requests for a document by fanning them out
// to the language servers that handle it, and merging what comes back.
package service

import (
	"context"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
	"github.com/pulumi/lsp-dispatch/sdk/fanout"
	"github.com/pulumi/lsp-dispatch/sdk/registry"
	"github.com/pulumi/lsp-dispatch/sdk/server"
	"github.com/pulumi/lsp-dispatch/sdk/util"
)

type Options struct {
	Executor *fanout.Executor
	// The deadline of a single fan-out.
	RequestTimeout time.Duration
	// workspace/symbol asks every server, so it gets longer.
	WorkspaceSymbolTimeout time.Duration
	Logger                 *zap.SugaredLogger
}

// Service routes requests through a registry.
type Service struct {
	registry      *registry.Registry
	exec          *fanout.Executor
	timeout       time.Duration
	symbolTimeout time.Duration
	logger        *zap.SugaredLogger

	docs           *documents
	removeObserver func()
}

func New(r *registry.Registry, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Executor == nil {
		opts.Executor = fanout.New(opts.Logger)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.WorkspaceSymbolTimeout <= 0 {
		opts.WorkspaceSymbolTimeout = 50 * time.Second
	}
	s := &Service{
		registry:      r,
		exec:          opts.Executor,
		timeout:       opts.RequestTimeout,
		symbolTimeout: opts.WorkspaceSymbolTimeout,
		logger:        opts.Logger,
		docs:          newDocuments(),
	}
	s.removeObserver = r.AddObserver(s.replay)
	return s
}

// Close stops replaying open documents to new servers.
func (s *Service) Close() {
	s.removeObserver()
}

// Registry the service routes through.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Capabilities advertised to an editor: everything the service can route,
// overlaid with what the ready servers report.
func (s *Service) Capabilities() capability.Capabilities {
	caps := []capability.Capabilities{dispatchable}
	for _, srv := range s.registry.Initialized() {
		caps = append(caps, srv.Capabilities)
	}
	return capability.Merge(caps...)
}

var dispatchable = capability.Capabilities{
	HoverProvider:                   capability.Some(true),
	DefinitionProvider:              capability.Some(true),
	ReferencesProvider:              capability.Some(true),
	DocumentHighlightProvider:       capability.Some(true),
	DocumentSymbolProvider:          capability.Some(true),
	WorkspaceSymbolProvider:         capability.Some(true),
	CodeActionProvider:              capability.Some(true),
	DocumentFormattingProvider:      capability.Some(true),
	DocumentRangeFormattingProvider: capability.Some(true),
	RenameProvider:                  capability.Some(true),
	CompletionProvider:              capability.Some(capability.CompletionOptions{ResolveProvider: true}),
	SignatureHelpProvider:           capability.Some(capability.SignatureHelpOptions{}),
}

// servers launches what is missing for document and returns the applicable
// servers, best first.
func (s *Service) servers(ctx context.Context, document protocol.DocumentURI) ([]*server.Initialized, error) {
	tiers, err := s.registry.Servers(ctx, string(document))
	if err != nil {
		return nil, err
	}
	return util.Flatten(tiers), nil
}

// first asks the servers for document one after the other, and returns the
// first result accepted by ok.
func first[R any](ctx context.Context, s *Service, document protocol.DocumentURI,
	supports func(capability.Capabilities) bool,
	call func(context.Context, protocol.Server) (R, error),
	ok func(R) bool,
) (R, error) {
	var result R
	servers, err := s.servers(ctx, document)
	if err != nil {
		return result, err
	}
	fanout.InSequence(ctx, s.exec, servers, fanout.Operation[*server.Initialized, R]{
		CanDo: func(srv *server.Initialized) bool { return supports(srv.Capabilities) },
		Start: func(ctx context.Context, srv *server.Initialized) (R, error) { return call(ctx, srv.Server()) },
		HandleResult: func(_ *server.Initialized, r R) bool {
			if !ok(r) {
				return false
			}
			result = r
			return true
		},
	}, s.timeout)
	return result, nil
}

// all asks every server for document at once and concatenates the results
// that arrive in time. The result is never nil.
func all[R any](ctx context.Context, s *Service, document protocol.DocumentURI,
	supports func(capability.Capabilities) bool,
	call func(context.Context, protocol.Server) ([]R, error),
) ([]R, error) {
	servers, err := s.servers(ctx, document)
	if err != nil {
		return nil, err
	}
	return gather(ctx, s, servers, supports, call, s.timeout), nil
}

func gather[R any](ctx context.Context, s *Service, servers []*server.Initialized,
	supports func(capability.Capabilities) bool,
	call func(context.Context, protocol.Server) ([]R, error),
	timeout time.Duration,
) []R {
	results := []R{}
	fanout.InParallel(ctx, s.exec, servers, fanout.Operation[*server.Initialized, []R]{
		CanDo: func(srv *server.Initialized) bool { return supports(srv.Capabilities) },
		Start: func(ctx context.Context, srv *server.Initialized) ([]R, error) { return call(ctx, srv.Server()) },
		HandleResult: func(_ *server.Initialized, r []R) bool {
			results = append(results, r...)
			return false
		},
	}, timeout)
	return results
}

// broadcast sends a notification to servers concurrently. Failures are
// logged.
func (s *Service) broadcast(ctx context.Context, servers []*server.Initialized, method string,
	send func(context.Context, *server.Initialized) error,
) {
	var g errgroup.Group
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := send(ctx, srv); err != nil {
				s.logger.Warnf("Sending %s to %v failed: %v", method, srv, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

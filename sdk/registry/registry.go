// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The registry package decides which language servers handle a document. It
// owns the registered languages and launchers, launches servers on demand and
// groups the ready ones by how well they match.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
	"github.com/pulumi/lsp-dispatch/sdk/initializer"
	"github.com/pulumi/lsp-dispatch/sdk/language"
	"github.com/pulumi/lsp-dispatch/sdk/server"
	"github.com/pulumi/lsp-dispatch/sdk/step"
	"github.com/pulumi/lsp-dispatch/sdk/util"
)

// ProjectResolver finds the project root of a document.
type ProjectResolver interface {
	Resolve(document string) (string, error)
}

type Options struct {
	Projects    ProjectResolver
	Initializer *initializer.Initializer
	// How long EnsureInitialized waits for launches to resolve.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// Registry is safe for concurrent use.
type Registry struct {
	languages *language.Registry
	projects  ProjectResolver
	init      *initializer.Initializer
	timeout   time.Duration
	logger    *zap.SugaredLogger

	mu        sync.RWMutex
	launchers []server.Launcher
	order     map[string]int
}

func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Initializer == nil {
		opts.Initializer = initializer.New(initializer.Options{Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Registry{
		languages: language.NewRegistry(),
		projects:  opts.Projects,
		init:      opts.Initializer,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		order:     map[string]int{},
	}
}

// RegisterLanguage adds a language. Registering an id twice is a no-op.
func (r *Registry) RegisterLanguage(d language.Description) error {
	ok, err := r.languages.Register(d)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Debugf("Language %s is already registered", d.ID)
	}
	return nil
}

// RegisterLauncher adds a launcher. Server ids must be unique.
func (r *Registry) RegisterLauncher(l server.Launcher) error {
	d := l.Description()
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.order[d.ID]; ok {
		return fmt.Errorf("language server %s is already registered", d.ID)
	}
	r.order[d.ID] = len(r.launchers)
	r.launchers = append(r.launchers, l)
	return nil
}

// Languages returns every registered language.
func (r *Registry) Languages() []language.Description {
	return r.languages.All()
}

// Descriptions of every registered server, in registration order.
func (r *Registry) Descriptions() []*server.Description {
	return util.MapOver(r.snapshot(), server.Launcher.Description)
}

// LanguageID of a document, or "" when no language matches.
func (r *Registry) LanguageID(document string) string {
	return r.languages.LanguageID(document)
}

// Project returns the project root of document.
func (r *Registry) Project(document string) (string, error) {
	if r.projects == nil {
		return "", errors.New("no project resolver configured")
	}
	return r.projects.Resolve(document)
}

// Score reports how well s handles document.
func (r *Registry) Score(s *server.Initialized, document string) int {
	return server.MatchScore(s.Description, document, r.LanguageID(document))
}

// EnsureInitialized launches every server that matches document and is not
// launched yet, then waits for the pending launches of matching servers to
// resolve, bounded by the registry timeout. It returns the merged
// capabilities of the matching servers that are ready.
//
// Launch failures are not errors here: the capabilities simply lack what the
// failed server would have added.
func (r *Registry) EnsureInitialized(ctx context.Context, document string) (capability.Capabilities, error) {
	project, err := r.Project(document)
	if err != nil {
		return capability.Capabilities{}, err
	}
	languageID := r.LanguageID(document)

	var steps []*step.Step[*server.Initialized]
	for _, l := range r.snapshot() {
		if server.MatchScore(l.Description(), document, languageID) > server.NoMatch {
			steps = append(steps, r.init.Initialize(project, l))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := step.Join(ctx, steps...); err != nil {
		r.logger.Infof("Not every language server for %s was ready within %v", document, r.timeout)
	}

	servers := r.applicable(project, document, languageID)
	caps := make([]capability.Capabilities, 0, len(servers))
	for _, s := range servers {
		caps = append(caps, s.Capabilities)
	}
	return capability.Merge(caps...), nil
}

// ApplicableServers groups the ready servers that match document into tiers
// of equal score, best first. Within a tier servers are in registration
// order. Servers that do not match are left out.
func (r *Registry) ApplicableServers(document string) ([][]*server.Initialized, error) {
	project, err := r.Project(document)
	if err != nil {
		return nil, err
	}
	languageID := r.LanguageID(document)
	return tiers(r.applicable(project, document, languageID), document, languageID), nil
}

// Servers launches what is missing, then returns the tiers of
// ApplicableServers.
func (r *Registry) Servers(ctx context.Context, document string) ([][]*server.Initialized, error) {
	if _, err := r.EnsureInitialized(ctx, document); err != nil {
		return nil, err
	}
	return r.ApplicableServers(document)
}

// Initialized returns every ready server of every project.
func (r *Registry) Initialized() []*server.Initialized {
	return r.init.All()
}

// Server finds a ready server by id. If several projects run the server, the
// lexicographically first project wins.
func (r *Registry) Server(id string) (*server.Initialized, bool) {
	for _, s := range r.init.All() {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// State of the server with id in project.
func (r *Registry) State(project, id string) initializer.State {
	return r.init.State(project, id)
}

// Launched lists the state of every launched (project, server) pair.
func (r *Registry) Launched() []initializer.Status {
	return r.init.Launched()
}

// AddObserver is called with every server that becomes ready.
func (r *Registry) AddObserver(o initializer.Observer) func() {
	return r.init.AddObserver(o)
}

// Shutdown stops every running server.
func (r *Registry) Shutdown(ctx context.Context) {
	r.init.Shutdown(ctx)
}

func (r *Registry) snapshot() []server.Launcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]server.Launcher(nil), r.launchers...)
}

// applicable returns the ready servers of project matching document, in
// registration order.
func (r *Registry) applicable(project, document, languageID string) []*server.Initialized {
	var out []*server.Initialized
	for _, s := range r.init.Initialized(project) {
		if server.MatchScore(s.Description, document, languageID) > server.NoMatch {
			out = append(out, s)
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range out {
		_, ok := r.order[s.ID()]
		contract.Assertf(ok, "ready server %s was never registered", s.ID())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.order[out[i].ID()] < r.order[out[j].ID()]
	})
	return out
}

func tiers(servers []*server.Initialized, document, languageID string) [][]*server.Initialized {
	byScore := map[int][]*server.Initialized{}
	for _, s := range servers {
		score := server.MatchScore(s.Description, document, languageID)
		byScore[score] = append(byScore[score], s)
	}
	scores := util.MapKeys(byScore)
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	return util.MapOver(scores, func(score int) []*server.Initialized { return byScore[score] })
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The initializer package launches language servers lazily, at most once per
// project, and tracks the servers that are ready to answer requests.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/server"
	"github.com/pulumi/lsp-dispatch/sdk/step"
)

// State of a (project, server) pair.
type State int

const (
	Unlaunched State = iota
	Launching
	Ready
	// Failed and Crashed are terminal.
	Failed
	Crashed
)

func (s State) String() string {
	switch s {
	case Unlaunched:
		return "unlaunched"
	case Launching:
		return "launching"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrShuttingDown is returned for launches that race with Shutdown.
var ErrShuttingDown = errors.New("shutting down")

// Observer is told about every server that becomes ready. It is called
// synchronously on the launching goroutine and must not block.
type Observer func(s *server.Initialized)

type Options struct {
	// How long the initialize handshake may take.
	Timeout time.Duration
	// Identifies us to the servers we launch.
	ClientName    string
	ClientVersion string

	Publisher notify.Publisher
	Logger    *zap.SugaredLogger
}

type key struct {
	project  string
	serverID string
}

type entry struct {
	state State
	step  *step.Step[*server.Initialized]
}

// Initializer owns every launched language server.
type Initializer struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	entries   map[key]*entry
	ready     map[string][]*server.Initialized
	observers map[int]Observer
	nextObs   int
	closed    bool
}

func New(opts Options) *Initializer {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Initializer{
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		entries:   map[key]*entry{},
		ready:     map[string][]*server.Initialized{},
		observers: map[int]Observer{},
	}
}

// AddObserver registers o and returns a function that removes it.
func (i *Initializer) AddObserver(o Observer) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextObs
	i.nextObs++
	i.observers[id] = o
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.observers, id)
	}
}

// Initialize the server started by l for project. The launch happens at most
// once per (project, server) pair; every caller gets the same step. Failed and
// crashed servers are never relaunched.
func (i *Initializer) Initialize(project string, l server.Launcher) *step.Step[*server.Initialized] {
	k := key{project: project, serverID: l.Description().ID}

	i.mu.Lock()
	defer i.mu.Unlock()
	if e, ok := i.entries[k]; ok {
		return e.step
	}
	if i.closed {
		return step.Resolved[*server.Initialized](nil, ErrShuttingDown)
	}
	e := &entry{state: Launching}
	i.entries[k] = e
	e.step = step.New(i.ctx, func(ctx context.Context) (*server.Initialized, error) {
		s, err := i.launch(ctx, project, l)
		if err != nil {
			i.fail(k, l.Description(), err)
			return nil, err
		}
		return s, nil
	})
	return e.step
}

func (i *Initializer) launch(ctx context.Context, project string, l server.Launcher) (*server.Initialized, error) {
	desc := l.Description()
	if !l.IsAbleToLaunch() {
		return nil, &server.LaunchError{ServerID: desc.ID, Err: server.ErrUnableToLaunch}
	}

	i.opts.Logger.Infof("Launching language server %s for %s", desc.ID, project)
	relay := lsp.NewRelay(desc.ID, project, i.opts.Publisher, i.opts.Logger)
	conn, err := l.Launch(ctx, project, relay)
	if err != nil {
		return nil, &server.LaunchError{ServerID: desc.ID, Err: err}
	}

	initCtx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
	defer cancel()
	result, err := conn.Server().Initialize(initCtx, i.initializeParams(project))
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			i.opts.Logger.Debugf("Closing %s after failed initialize: %v", desc.ID, cerr)
		}
		return nil, &server.InitializeError{ServerID: desc.ID, Err: err}
	}
	if err := conn.Server().Initialized(initCtx, &protocol.InitializedParams{}); err != nil {
		i.opts.Logger.Warnf("Sending initialized to %s failed: %v", desc.ID, err)
	}

	s := server.NewInitialized(desc, project, conn, result)

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		_ = conn.Close()
		return nil, ErrShuttingDown
	}
	k := key{project: project, serverID: desc.ID}
	e, ok := i.entries[k]
	contract.Assertf(ok, "launched %s for %s without an entry", desc.ID, project)
	e.state = Ready
	i.ready[project] = append(i.ready[project], s)
	observers := make([]Observer, 0, len(i.observers))
	for _, id := range sortedKeys(i.observers) {
		observers = append(observers, i.observers[id])
	}
	i.mu.Unlock()

	i.opts.Logger.Infof("Language server %s is ready for %s", desc.ID, project)
	for _, o := range observers {
		o(s)
	}
	i.opts.Publisher.Publish(notify.Event{
		Kind:     notify.ServerInitialized,
		ServerID: desc.ID,
		Project:  project,
		Payload:  s.Info(),
	})
	go i.watch(k, s)
	return s, nil
}

// fail marks the pair as failed and tells the user, once. Launches cut short
// by Shutdown are not reported.
func (i *Initializer) fail(k key, desc *server.Description, err error) {
	i.mu.Lock()
	e, ok := i.entries[k]
	contract.Assertf(ok, "failed launch of %s for %s without an entry", desc.ID, k.project)
	e.state = Failed
	closed := i.closed
	i.mu.Unlock()

	if closed || errors.Is(err, ErrShuttingDown) {
		i.opts.Logger.Debugf("Launch of %s for %s abandoned: %v", desc.ID, k.project, err)
		return
	}

	i.opts.Logger.Errorf("Failed to launch language server %s for %s: %v", desc.ID, k.project, err)
	i.opts.Publisher.Publish(notify.Event{
		Kind:     notify.LaunchFailed,
		ServerID: desc.ID,
		Project:  k.project,
		Message:  "Failed to launch language server " + desc.ID,
	})
}

// watch removes s once its connection is lost.
func (i *Initializer) watch(k key, s *server.Initialized) {
	select {
	case <-s.Conn.Done():
	case <-i.ctx.Done():
		return
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	e, ok := i.entries[k]
	contract.Assertf(ok, "watching %s for %s without an entry", k.serverID, k.project)
	e.state = Crashed
	servers := i.ready[k.project]
	for idx, candidate := range servers {
		if candidate == s {
			i.ready[k.project] = append(servers[:idx:idx], servers[idx+1:]...)
			break
		}
	}
	i.mu.Unlock()

	i.opts.Logger.Errorf("Language server %s for %s stopped unexpectedly", k.serverID, k.project)
	i.opts.Publisher.Publish(notify.Event{
		Kind:     notify.ServerCrashed,
		ServerID: k.serverID,
		Project:  k.project,
		Message:  "Language server " + k.serverID + " stopped unexpectedly",
	})
}

func (i *Initializer) initializeParams(project string) *protocol.InitializeParams {
	return &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   protocol.DocumentURI(uri.File(project)),
		RootPath:  project,
		ClientInfo: &protocol.ClientInfo{
			Name:    i.opts.ClientName,
			Version: i.opts.ClientVersion,
		},
		Capabilities: protocol.ClientCapabilities{},
	}
}

// State of the server with id in project.
func (i *Initializer) State(project, id string) State {
	i.mu.Lock()
	defer i.mu.Unlock()
	if e, ok := i.entries[key{project: project, serverID: id}]; ok {
		return e.state
	}
	return Unlaunched
}

// Status is the state of one launched (project, server) pair.
type Status struct {
	Project  string `json:"project"`
	ServerID string `json:"serverId"`
	State    State  `json:"state"`
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Launched lists every pair that was ever launched, by project and then
// server id.
func (i *Initializer) Launched() []Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Status, 0, len(i.entries))
	for k, e := range i.entries {
		out = append(out, Status{Project: k.project, ServerID: k.serverID, State: e.state})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Project != out[b].Project {
			return out[a].Project < out[b].Project
		}
		return out[a].ServerID < out[b].ServerID
	})
	return out
}

// Initialized returns the ready servers of project, in the order they became
// ready.
func (i *Initializer) Initialized(project string) []*server.Initialized {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*server.Initialized(nil), i.ready[project]...)
}

// All ready servers, ordered by project and then readiness.
func (i *Initializer) All() []*server.Initialized {
	i.mu.Lock()
	defer i.mu.Unlock()
	projects := make([]string, 0, len(i.ready))
	for p := range i.ready {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	var all []*server.Initialized
	for _, p := range projects {
		all = append(all, i.ready[p]...)
	}
	return all
}

// Shutdown sends shutdown and exit to every ready server and closes the
// connections. Errors are logged, never returned. Launches that are still in
// flight are canceled.
func (i *Initializer) Shutdown(ctx context.Context) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	i.mu.Unlock()
	servers := i.All()

	var g errgroup.Group
	for _, s := range servers {
		s := s
		g.Go(func() error {
			if err := s.Server().Shutdown(ctx); err != nil {
				i.opts.Logger.Warnf("Shutting down %v: %v", s, err)
			}
			if err := s.Server().Exit(ctx); err != nil {
				i.opts.Logger.Warnf("Sending exit to %v: %v", s, err)
			}
			if err := s.Conn.Close(); err != nil {
				i.opts.Logger.Debugf("Closing %v: %v", s, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	i.cancel()
}

func sortedKeys(m map[int]Observer) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The launcher package starts language servers as child processes that speak
// LSP over stdio.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/kballard/go-shellquote"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

// Process launches a language server binary.
type Process struct {
	description *server.Description
	argv        []string
	env         []string
	dir         string
	logger      *zap.SugaredLogger
}

var _ server.Launcher = (*Process)(nil)

// NewProcess creates a launcher for the server described by d. commandLine is
// split like a shell would; args are appended verbatim.
func NewProcess(d *server.Description, commandLine string, args []string, env map[string]string, dir string,
	logger *zap.SugaredLogger,
) (*Process, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("server %s: invalid command %q: %w", d.ID, commandLine, err)
	}
	argv = append(argv, args...)
	if len(argv) == 0 {
		return nil, fmt.Errorf("server %s: no command", d.ID)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Process{
		description: d,
		argv:        argv,
		env:         environ(env),
		dir:         dir,
		logger:      logger.With("server", d.ID),
	}, nil
}

func (p *Process) Description() *server.Description {
	return p.description
}

// Argv is the command line the server is started with.
func (p *Process) Argv() []string {
	return append([]string(nil), p.argv...)
}

// IsAbleToLaunch reports whether the command can be found.
func (p *Process) IsAbleToLaunch() bool {
	_, err := exec.LookPath(p.argv[0])
	return err == nil
}

// Launch starts the process in the project directory, unless a directory was
// configured. The process outlives ctx; it is stopped by closing the returned
// connection.
func (p *Process) Launch(ctx context.Context, projectRoot string, client protocol.Client) (server.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	cmd.Dir = projectRoot
	if p.dir != "" {
		cmd.Dir = p.dir
	}
	cmd.Env = append(os.Environ(), p.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", p.argv[0], err)
	}
	go p.logStderr(stderr)

	pc := &processConn{
		Conn:   lsp.Dial(&stdio{stdout, stdin}, client, p.logger.Desugar()),
		cmd:    cmd,
		exited: make(chan struct{}),
		logger: p.logger,
	}
	go pc.wait()
	return pc, nil
}

func (p *Process) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug(scanner.Text())
	}
}

type processConn struct {
	*lsp.Conn
	cmd    *exec.Cmd
	exited chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger
}

func (c *processConn) wait() {
	err := c.cmd.Wait()
	close(c.exited)
	if err != nil {
		c.logger.Infof("Process exited: %v", err)
	}
}

// Close the connection and make sure the process is gone.
func (c *processConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.Conn.Close()
		select {
		case <-c.exited:
		default:
			if kerr := c.cmd.Process.Kill(); kerr != nil {
				c.logger.Debugf("Killing process: %v", kerr)
			}
		}
	})
	return err
}

// stdio joins a child's stdout and stdin into one stream.
type stdio struct {
	io.ReadCloser
	w io.WriteCloser
}

func (s *stdio) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *stdio) Close() error {
	werr := s.w.Close()
	if err := s.ReadCloser.Close(); err != nil {
		return err
	}
	return werr
}

func environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

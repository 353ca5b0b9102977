// Copyright 2022, Pulumi Corporation.  All rights reserved.

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/config"
	"github.com/pulumi/lsp-dispatch/sdk/initializer"
	"github.com/pulumi/lsp-dispatch/sdk/launcher"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/project"
	"github.com/pulumi/lsp-dispatch/sdk/registry"
	"github.com/pulumi/lsp-dispatch/sdk/service"
	"github.com/pulumi/lsp-dispatch/sdk/version"
)

const appName = "lsp-dispatch"

// dispatcher is everything a command needs, wired from the configuration.
type dispatcher struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	hub      *notify.Hub
	registry *registry.Registry
	service  *service.Service
}

func newDispatcher(flags *globalFlags) (*dispatcher, error) {
	cfg, err := config.Load(flags.v, flags.configFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(flags.level, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	projects := project.NewResolver(cfg.Workspace.Root, cfg.Workspace.Projects...)
	if cfg.Workspace.Discover {
		if err := projects.Discover(); err != nil {
			logger.Warnf("Discovering projects in %s: %v", cfg.Workspace.Root, err)
		}
	}

	hub := notify.NewHub(logger)
	reg := registry.New(registry.Options{
		Projects: projects,
		Initializer: initializer.New(initializer.Options{
			Timeout:       cfg.Timeouts.Initialize,
			ClientName:    appName,
			ClientVersion: version.String(),
			Publisher:     hub,
			Logger:        logger,
		}),
		Timeout: cfg.Timeouts.Initialize,
		Logger:  logger,
	})
	for _, l := range cfg.Languages {
		if err := reg.RegisterLanguage(l.Description()); err != nil {
			return nil, err
		}
	}
	for _, s := range cfg.Servers {
		p, err := launcher.FromConfig(s, logger)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterLauncher(p); err != nil {
			return nil, err
		}
		if !p.IsAbleToLaunch() {
			logger.Warnf("Language server %s cannot be started: %s was not found", s.ID, p.Argv()[0])
		}
	}
	logger.Debugf("Registered %d languages and %d language servers", len(cfg.Languages), len(cfg.Servers))

	return &dispatcher{
		cfg:      cfg,
		logger:   logger,
		hub:      hub,
		registry: reg,
		service: service.New(reg, service.Options{
			RequestTimeout:         cfg.Timeouts.Request,
			WorkspaceSymbolTimeout: cfg.Timeouts.WorkspaceSymbol,
			Logger:                 logger,
		}),
	}, nil
}

// newLogger writes to stderr, since stdout may carry LSP.
func newLogger(level zap.AtomicLevel, name string) (*zap.SugaredLogger, error) {
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func (d *dispatcher) close() {
	d.service.Close()
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeouts.Shutdown)
	defer cancel()
	d.registry.Shutdown(ctx)
	_ = d.logger.Sync()
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package launcher

import (
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/config"
)

// FromConfig creates the launcher for a configured server.
func FromConfig(s config.Server, logger *zap.SugaredLogger) (*Process, error) {
	return NewProcess(s.Description(), s.Command, s.Args, s.Environment(), s.Dir, logger)
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

package server

import (
	"errors"
	"fmt"
)

// ErrUnableToLaunch is returned when a launcher reports that it cannot start
// its server in this environment.
var ErrUnableToLaunch = errors.New("unable to launch")

// LaunchError is returned when a language server could not be started.
type LaunchError struct {
	ServerID string
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch language server %s: %v", e.ServerID, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// InitializeError is returned when a started server failed the initialize
// handshake.
type InitializeError struct {
	ServerID string
	Err      error
}

func (e *InitializeError) Error() string {
	return fmt.Sprintf("language server %s failed to initialize: %v", e.ServerID, e.Err)
}

func (e *InitializeError) Unwrap() error {
	return e.Err
}

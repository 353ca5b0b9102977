// Copyright 2022, Pulumi Corporation.  All rights reserved.

package server

import (
	"go.lsp.dev/protocol"

	"github.com/pulumi/lsp-dispatch/sdk/capability"
)

// Initialized is a language server that has completed the initialize
// handshake for a project.
type Initialized struct {
	Description  *Description
	Project      string
	Conn         Connection
	Result       *protocol.InitializeResult
	Capabilities capability.Capabilities
}

// NewInitialized wraps a server that answered initialize with result.
func NewInitialized(d *Description, project string, conn Connection, result *protocol.InitializeResult) *Initialized {
	if result == nil {
		result = &protocol.InitializeResult{}
	}
	return &Initialized{
		Description:  d,
		Project:      project,
		Conn:         conn,
		Result:       result,
		Capabilities: capability.FromProtocol(result.Capabilities),
	}
}

func (s *Initialized) ID() string {
	return s.Description.ID
}

func (s *Initialized) Server() protocol.Server {
	return s.Conn.Server()
}

func (s *Initialized) String() string {
	return s.Project + ":" + s.Description.ID
}

// Info is the serializable summary of an initialized server.
type Info struct {
	ID           string                      `json:"id"`
	Project      string                      `json:"project"`
	LanguageIDs  []string                    `json:"languageIds,omitempty"`
	ServerInfo   *protocol.ServerInfo        `json:"serverInfo,omitempty"`
	Capabilities protocol.ServerCapabilities `json:"capabilities"`
}

func (s *Initialized) Info() Info {
	return Info{
		ID:           s.ID(),
		Project:      s.Project,
		LanguageIDs:  s.Description.LanguageIDs,
		ServerInfo:   s.Result.ServerInfo,
		Capabilities: s.Capabilities.Protocol(),
	}
}

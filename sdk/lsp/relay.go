// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/notify"
)

// Relay is the protocol.Client handed to a language server we launched. It
// forwards what the server pushes to a notify.Publisher, and answers the
// server's own requests with conservative defaults.
type Relay struct {
	serverID  string
	project   string
	publisher notify.Publisher
	logger    *zap.SugaredLogger
}

var _ protocol.Client = (*Relay)(nil)

func NewRelay(serverID, project string, publisher notify.Publisher, logger *zap.SugaredLogger) *Relay {
	if publisher == nil {
		publisher = notify.Discard
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relay{
		serverID:  serverID,
		project:   project,
		publisher: publisher,
		logger:    logger.With("server", serverID),
	}
}

func (r *Relay) publish(kind notify.Kind, message string, payload interface{}) {
	r.publisher.Publish(notify.Event{
		Kind:     kind,
		ServerID: r.serverID,
		Project:  r.project,
		Message:  message,
		Payload:  payload,
	})
}

func (r *Relay) Progress(context.Context, *protocol.ProgressParams) error {
	return nil
}

func (r *Relay) WorkDoneProgressCreate(context.Context, *protocol.WorkDoneProgressCreateParams) error {
	return nil
}

func (r *Relay) LogMessage(_ context.Context, params *protocol.LogMessageParams) error {
	switch params.Type {
	case protocol.MessageTypeError:
		r.logger.Error(params.Message)
	case protocol.MessageTypeWarning:
		r.logger.Warn(params.Message)
	case protocol.MessageTypeInfo:
		r.logger.Info(params.Message)
	default:
		r.logger.Debug(params.Message)
	}
	r.publish(notify.LogMessage, params.Message, params)
	return nil
}

func (r *Relay) PublishDiagnostics(_ context.Context, params *protocol.PublishDiagnosticsParams) error {
	r.publish(notify.Diagnostics, "", params)
	return nil
}

func (r *Relay) ShowMessage(_ context.Context, params *protocol.ShowMessageParams) error {
	r.publish(notify.ShowMessage, params.Message, params)
	return nil
}

// Nobody is around to pick an action, so none is chosen.
func (r *Relay) ShowMessageRequest(_ context.Context, params *protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error) {
	r.publish(notify.ShowMessage, params.Message, params)
	return nil, nil
}

func (r *Relay) Telemetry(_ context.Context, params interface{}) error {
	r.publish(notify.Telemetry, "", params)
	return nil
}

func (r *Relay) RegisterCapability(_ context.Context, params *protocol.RegistrationParams) error {
	for _, reg := range params.Registrations {
		r.logger.Debugf("Ignoring dynamic registration of %s", reg.Method)
	}
	return nil
}

func (r *Relay) UnregisterCapability(context.Context, *protocol.UnregistrationParams) error {
	return nil
}

func (r *Relay) ApplyEdit(context.Context, *protocol.ApplyWorkspaceEditParams) (bool, error) {
	r.logger.Debug("Refusing workspace/applyEdit")
	return false, nil
}

// Every configuration item is answered with null.
func (r *Relay) Configuration(_ context.Context, params *protocol.ConfigurationParams) ([]interface{}, error) {
	return make([]interface{}, len(params.Items)), nil
}

func (r *Relay) WorkspaceFolders(context.Context) ([]protocol.WorkspaceFolder, error) {
	return nil, nil
}

// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The rest package exposes the dispatcher over HTTP. Each LSP method is a
// POST endpoint taking and returning the LSP JSON body, with document URIs
// relative to the workspace.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/initializer"
	"github.com/pulumi/lsp-dispatch/sdk/language"
	"github.com/pulumi/lsp-dispatch/sdk/notify"
	"github.com/pulumi/lsp-dispatch/sdk/project"
	"github.com/pulumi/lsp-dispatch/sdk/server"
	"github.com/pulumi/lsp-dispatch/sdk/service"
	"github.com/pulumi/lsp-dispatch/sdk/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	service  *service.Service
	hub      *notify.Hub
	rewriter project.Rewriter
	router   *mux.Router
	logger   *zap.SugaredLogger
}

func New(svc *service.Service, hub *notify.Hub, rewriter project.Rewriter, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := mux.NewRouter().UseEncodedPath()
	s := &Server{
		service:  svc,
		hub:      hub,
		rewriter: rewriter,
		router:   r,
		logger:   logger,
	}

	ls := r.PathPrefix("/languageserver").Subrouter()
	ls.HandleFunc("/initialize", s.Initialize).Methods(http.MethodPost)
	ls.HandleFunc("/supported", s.Supported).Methods(http.MethodGet)
	ls.HandleFunc("/registered", s.Registered).Methods(http.MethodGet)
	ls.HandleFunc("/servers", s.Servers).Methods(http.MethodGet)
	ls.HandleFunc("/events", s.Events)

	td := r.PathPrefix("/textDocument").Subrouter()
	td.Handle("/completion", call(s, svc.Completion)).Methods(http.MethodPost)
	td.Handle("/hover", call(s, svc.Hover)).Methods(http.MethodPost)
	td.Handle("/signatureHelp", call(s, svc.SignatureHelp)).Methods(http.MethodPost)
	td.Handle("/references", call(s, svc.References)).Methods(http.MethodPost)
	td.Handle("/definition", call(s, svc.Definition)).Methods(http.MethodPost)
	td.Handle("/documentSymbol", call(s, svc.DocumentSymbol)).Methods(http.MethodPost)
	td.Handle("/documentHighlight", call(s, svc.DocumentHighlight)).Methods(http.MethodPost)
	td.Handle("/formatting", call(s, svc.Formatting)).Methods(http.MethodPost)
	td.Handle("/rangeFormatting", call(s, svc.RangeFormatting)).Methods(http.MethodPost)
	td.Handle("/onTypeFormatting", call(s, svc.OnTypeFormatting)).Methods(http.MethodPost)
	td.Handle("/rename", call(s, svc.Rename)).Methods(http.MethodPost)
	td.Handle("/codeAction", call(s, svc.CodeAction)).Methods(http.MethodPost)
	td.Handle("/didOpen", notification(s, svc.DidOpen)).Methods(http.MethodPost)
	td.Handle("/didChange", notification(s, svc.DidChange)).Methods(http.MethodPost)
	td.Handle("/didClose", notification(s, svc.DidClose)).Methods(http.MethodPost)
	td.Handle("/didSave", notification(s, svc.DidSave)).Methods(http.MethodPost)

	r.Handle("/completionItem/resolve", call(s, svc.CompletionResolve)).Methods(http.MethodPost)
	r.Handle("/workspace/symbol", call(s, svc.WorkspaceSymbol)).Methods(http.MethodPost)
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

// call serves a request whose parameters decode into P.
func call[P, R any](s *Server, f func(context.Context, *P) (R, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var params P
		if err := s.decode(req.Body, &params); err != nil {
			http.Error(w, fmt.Sprintf("error parsing JSON payload: %v", err), http.StatusBadRequest)
			return
		}
		result, err := f(req.Context(), &params)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.respond(w, result)
	})
}

func notification[P any](s *Server, f func(context.Context, *P) error) http.Handler {
	return call(s, func(ctx context.Context, params *P) (struct{}, error) {
		return struct{}{}, f(ctx, params)
	})
}

// Initialize launches the servers for ?path= and answers with their merged
// capabilities.
func (s *Server) Initialize(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	caps, err := s.service.Registry().EnsureInitialized(req.Context(), s.rewriter.Prefix(path))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, protocol.InitializeResult{Capabilities: caps.Protocol()})
}

func (s *Server) Supported(w http.ResponseWriter, req *http.Request) {
	langs := s.service.Registry().Languages()
	if langs == nil {
		langs = []language.Description{}
	}
	s.respond(w, langs)
}

// Registered lists the servers that are ready.
func (s *Server) Registered(w http.ResponseWriter, req *http.Request) {
	infos := util.MapOver(s.service.Registry().Initialized(), (*server.Initialized).Info)
	s.respond(w, infos)
}

type serverStatus struct {
	*server.Description
	Instances []initializer.Status `json:"instances"`
}

// Servers lists every registered server with the state of each launch.
func (s *Server) Servers(w http.ResponseWriter, req *http.Request) {
	reg := s.service.Registry()
	launched := reg.Launched()
	statuses := util.MapOver(reg.Descriptions(), func(d *server.Description) serverStatus {
		return serverStatus{
			Description: d,
			Instances: util.Filter(launched, func(st initializer.Status) bool {
				return st.ServerID == d.ID
			}),
		}
	})
	s.respond(w, statuses)
}

// decode reads a JSON body into v, making every document URI absolute on the
// way.
func (s *Server) decode(body io.Reader, v interface{}) error {
	var raw interface{}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return err
	}
	b, err := json.Marshal(s.rewriter.PrefixAll(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// relative re-encodes v with every document URI made relative.
func (s *Server) relative(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return s.rewriter.StripAll(raw), nil
}

func (s *Server) respond(w http.ResponseWriter, v interface{}) {
	out, err := s.relative(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error rendering payload: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Debugf("Writing response: %v", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, project.ErrProjectNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Errorf("Request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

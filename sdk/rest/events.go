// Copyright 2022, Pulumi Corporation.  All rights reserved.

package rest

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pulumi/lsp-dispatch/sdk/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams hub events to a websocket until either side goes away.
// Document URIs in payloads are made relative.
func (s *Server) Events(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error upgrading websocket: %v", err), http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe(64)
	defer unsubscribe()

	// Control messages are only processed while reading.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.send(conn, e); err != nil {
				s.logger.Debugf("Sending %s event: %v", e.Kind, err)
				return
			}
		case <-gone:
			return
		case <-req.Context().Done():
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, e notify.Event) error {
	out, err := s.relative(e)
	if err != nil {
		return err
	}
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_companion/internal/log"
	"github.com/relabs-tech/flight_companion/internal/session"
	"github.com/relabs-tech/flight_companion/internal/storage"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

const (
	wsWriteTimeout = 5 * time.Second
	logReadTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the companion is served on the local network only
	},
}

// Controller is the session surface the web API drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	SelectProtocol(v telemetry.Variant) error
	Connect(device string) error
	Disconnect() error
	ClearLogs()
}

// FlightLogs reads the stored log. Flush waits for pending writes.
type FlightLogs interface {
	storage.LogReader
	Flush(ctx context.Context) error
}

type webServer struct {
	ctl  Controller
	logs FlightLogs
}

// WSMessage is a command sent by a websocket client.
type WSMessage struct {
	Action   string `json:"action"` // select_protocol, connect, disconnect
	Protocol string `json:"protocol,omitempty"`
	Device   string `json:"device,omitempty"`
}

// WSResponse is pushed to websocket clients.
type WSResponse struct {
	Type     string            `json:"type"` // snapshot, error
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Message  string            `json:"message,omitempty"`
}

type logsResponse struct {
	Segments []storage.Segment `json:"segments"`
}

type segmentResponse struct {
	Segment string             `json:"segment"`
	Fixes   []telemetry.LogFix `json:"fixes"`
}

// NewWebHandler serves the companion HTTP API. logs may be nil.
func NewWebHandler(ctl Controller, logs FlightLogs) http.Handler {
	s := &webServer{ctl: ctl, logs: logs}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	mux.HandleFunc("POST /api/protocol", s.handleProtocol)
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/logs", s.handleListLogs)
	mux.HandleFunc("GET /api/logs/{id}", s.handleSegment)
	mux.HandleFunc("DELETE /api/logs", s.handleClearLogs)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *webServer) handleProtocol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Protocol string `json:"protocol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.selectProtocol(req.Protocol); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) selectProtocol(name string) error {
	v, err := telemetry.ParseVariant(name)
	if err != nil {
		return err
	}
	return s.ctl.SelectProtocol(v)
}

func (s *webServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.ctl.Connect(req.Device); err != nil {
		log.Printf("web: connect %q: %v", req.Device, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Disconnect(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "flight log not available", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), logReadTimeout)
	defer cancel()

	if err := s.logs.Flush(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	segments, err := s.logs.ListSegments(ctx)
	if err != nil {
		log.Errorf("web: list segments: %v", err)
		http.Error(w, "failed to list flight logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logsResponse{Segments: segments})
}

func (s *webServer) handleSegment(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "flight log not available", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), logReadTimeout)
	defer cancel()

	id := r.PathValue("id")
	if err := s.logs.Flush(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	fixes, err := s.logs.SegmentFixes(ctx, id)
	if err != nil {
		log.Errorf("web: segment %s: %v", id, err)
		http.Error(w, "failed to read flight log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, segmentResponse{Segment: id, Fixes: fixes})
}

func (s *webServer) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.ctl.ClearLogs()
	w.WriteHeader(http.StatusAccepted)
}

// handleWS streams snapshots and accepts the same commands as the REST API.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	replies := make(chan WSResponse, 4)
	closed := make(chan struct{})
	go s.readCommands(conn, replies, closed)

	for {
		var resp WSResponse
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			resp = WSResponse{Type: "snapshot", Snapshot: &snap}
		case resp = <-replies:
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

func (s *webServer) readCommands(conn *websocket.Conn, replies chan<- WSResponse, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			return
		}

		var err error
		switch msg.Action {
		case "select_protocol":
			err = s.selectProtocol(msg.Protocol)
		case "connect":
			err = s.ctl.Connect(msg.Device)
		case "disconnect":
			err = s.ctl.Disconnect()
		default:
			err = errors.New("unknown action " + msg.Action)
		}
		if err != nil {
			select {
			case replies <- WSResponse{Type: "error", Message: err.Error()}:
			default:
			}
		}
	}
}

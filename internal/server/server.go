// Package server hosts the browser surface: an embedded page, a websocket
// carrying widget geometry out and keyboard commands in, and JSON status
// endpoints.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scrollcam-go/internal/config"
)

//go:embed web/*
var webFS embed.FS

type Server struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]*sync.Mutex
	mu         sync.Mutex
	cfg        config.AppConfig
	statusFn   func() map[string]any
	snapshotFn func() any
	configFn   func() map[string]any
	commandFn  func(config.Command) error
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Hooks connect the server to the draw loop. Any of them may be nil.
type Hooks struct {
	// Status is served on /status.
	Status func() map[string]any
	// Snapshot returns the latest frame message, or nil before the first one.
	Snapshot func() any
	// Config is served on /config and sent to every new websocket client.
	Config func() map[string]any
	// Command receives commands sent by websocket clients.
	Command func(config.Command) error
}

func New(cfg config.AppConfig, hooks Hooks) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]*sync.Mutex),
		cfg:        cfg,
		statusFn:   hooks.Status,
		snapshotFn: hooks.Snapshot,
		configFn:   hooks.Config,
		commandFn:  hooks.Command,
	}
}

// Handler returns the routes served by Run.
func (s *Server) Handler() (http.Handler, error) {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(sub)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/status", s.handleStatus)
	return mux, nil
}

// Run serves HTTP on cfg.Port and broadcasts every value received on
// messages to all websocket clients until ctx is done.
func (s *Server) Run(ctx context.Context, messages <-chan any) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.Broadcast(ctx, messages)

	log.Printf("Starting web UI at http://localhost:%d", s.cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.mu.Lock()
	writeMu := &sync.Mutex{}
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, s.configPayload())
	if s.snapshotFn != nil {
		if snapshot := s.snapshotFn(); snapshot != nil {
			_ = s.writeJSON(conn, writeMu, snapshot)
		}
	}

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var request struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(payload, &request); err != nil {
				continue
			}
			s.handleRequest(conn, writeMu, request.Type)
		}
	}()
}

func (s *Server) handleRequest(conn *websocket.Conn, writeMu *sync.Mutex, kind string) {
	if kind == "snapshot_request" {
		if s.snapshotFn == nil {
			return
		}
		snapshot := s.snapshotFn()
		if snapshot == nil {
			return
		}
		_ = s.writeJSON(conn, writeMu, snapshot)
		return
	}
	cmd, ok := config.ParseCommand(kind)
	if !ok {
		return
	}
	if s.commandFn == nil {
		return
	}
	if err := s.commandFn(cmd); err != nil {
		log.Printf("websocket command %s: %v", cmd, err)
	}
}

func (s *Server) configPayload() map[string]any {
	if s.configFn != nil {
		if cfg := s.configFn(); cfg != nil {
			return cfg
		}
	}
	return map[string]any{
		"type":          "config",
		"sample_stride": s.cfg.SampleStride,
		"rows":          s.cfg.Rows,
		"display_size":  s.cfg.DisplaySize,
		"threshold":     s.cfg.Threshold,
		"debug":         s.cfg.Debug,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := s.configPayload()
	payload["port"] = s.cfg.Port
	payload["source"] = s.cfg.Source
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{}
	if s.statusFn != nil {
		payload = s.statusFn()
	}
	if metrics, ok := payload["metrics"].(map[string]any); ok {
		metrics["ws_clients"] = s.clientCount()
	} else {
		payload["ws_clients"] = s.clientCount()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Broadcast writes every message to all clients until ctx is done or
// messages is closed.
func (s *Server) Broadcast(ctx context.Context, messages <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			var stale []*websocket.Conn
			s.mu.Lock()
			for conn, writeMu := range s.clients {
				if err := s.writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
					stale = append(stale, conn)
				}
			}
			s.mu.Unlock()
			for _, conn := range stale {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}

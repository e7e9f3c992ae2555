// Package httpapi is the local dashboard and command-ingress surface: a
// JSON state snapshot, command endpoints that push onto the node's command
// channel, a WebSocket telemetry feed, and static asset serving. Grounded on
// the teacher's pkg/api/api.go REST+SSE server, with the SSE endpoint
// replaced by a gorilla/websocket upgrade per spec.md §4.9.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/node"
	"github.com/neviim/ghostmesh/internal/registry"
)

const maxLogBody = 16 * 1024 // 16 KiB, spec.md §4.9

// Server is the node's local HTTP and WebSocket surface.
type Server struct {
	reg      *registry.Registry
	commands chan<- node.Command
	logger   *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	webDir   string
}

// New builds a Server that reads state from reg, pushes commands onto
// commands, and serves static assets from webDir (web/index.html as root).
func New(reg *registry.Registry, commands chan<- node.Command, webDir string, logger *zap.Logger) *Server {
	s := &Server{
		reg:      reg,
		commands: commands,
		logger:   logger,
		mux:      http.NewServeMux(),
		webDir:   webDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/log", s.handleLog)
	s.mux.HandleFunc("/api/dm", s.handleDM)
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// ListenAndServe starts the HTTP server on addr (node_port+1 per spec.md
// §4.9).
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.reg.Snapshot())
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLogBody+1))
	if err != nil {
		http.Error(w, "error reading body", http.StatusInternalServerError)
		return
	}
	if len(body) > maxLogBody {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	select {
	case s.commands <- node.LogCommand(string(body)):
		w.Write([]byte("Logged"))
	default:
		http.Error(w, "command channel full", http.StatusInternalServerError)
	}
}

func (s *Server) handleDM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		To      string `json:"to"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	select {
	case s.commands <- node.SendDMCommand(req.To, req.Content):
		w.Write([]byte("Sent"))
	default:
		http.Error(w, "command channel full", http.StatusInternalServerError)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.reg.Events().Subscribe()
	defer unsubscribe()

	for evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

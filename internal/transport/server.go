// Package transport owns the HTTP listener: websocket upgrades on the
// realtime endpoint plus the health and metrics endpoints.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/config"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/realtime"
	"github.com/kalgynirae/sudoku/internal/room"
	"github.com/kalgynirae/sudoku/internal/state"
)

const realtimePrefix = "/api/v1/realtime"

// Server handles HTTP listening and websocket upgrades.
type Server struct {
	cfg     config.Config
	logger  *zap.Logger
	global  *state.Global
	metrics *metrics.Registry

	listener    net.Listener
	httpServer  *http.Server
	sessionCtx  context.Context
	stopSession context.CancelFunc
	wg          sync.WaitGroup
}

func NewServer(cfg config.Config, logger *zap.Logger, global *state.Global, m *metrics.Registry) *Server {
	return &Server{cfg: cfg, logger: logger, global: global, metrics: m}
}

// Start binds the listener and serves in the background. Sessions
// inherit ctx and are cancelled when it ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("transport already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.sessionCtx, s.stopSession = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(realtimePrefix, s.handleRealtime)
	mux.HandleFunc(realtimePrefix+"/", s.handleRealtime)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", s.metrics.Handler())
	s.httpServer = &http.Server{Handler: mux}

	s.logger.Info("listening", zap.Stringer("addr", ln.Addr()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop shuts the listener down and waits for every session to end.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", zap.Error(err))
	}
	s.stopSession()
	s.wg.Wait()
}

// handleRealtime resolves the room named by the path, then upgrades
// the connection and runs a session on it. A bare path mints a new
// room; a path with an id joins an existing one.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.resolveRoom(w, r)
	if !ok {
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.metrics.Sessions.UpgradeErrors.Inc()
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.Stringer("room", rm.ID()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		realtime.Handle(s.sessionCtx, conn, rm, logger, s.metrics)
	}()
}

func (s *Server) resolveRoom(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	rest := strings.TrimPrefix(r.URL.Path, realtimePrefix)
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		rm, err := s.global.Mint()
		if err != nil {
			s.logger.Error("failed to mint room", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return nil, false
		}
		return rm, true
	}

	id, err := room.ParseID(rest)
	if err != nil {
		s.logger.Debug("rejecting invalid room id", zap.String("id", rest))
		http.NotFound(w, r)
		return nil, false
	}
	rm, err := s.global.Join(r.Context(), id)
	switch {
	case errors.Is(err, state.ErrRoomNotFound):
		http.NotFound(w, r)
		return nil, false
	case err != nil:
		s.logger.Error("failed to load room", zap.Stringer("room", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return rm, true
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok"}); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Package server hosts the TCP front of the game: one accept loop, one
// handler goroutine per connection, and the session manager behind them.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gobang-server/internal/config"
	"gobang-server/internal/game"
	"gobang-server/internal/player"
	"gobang-server/internal/session"
	"gobang-server/internal/store"
)

// Server accepts TCP connections and routes their command lines into the
// session manager. It is also the manager's view of the outside world: it
// implements Notifier, Presence and Saver over the live handler set.
type Server struct {
	cfg      config.ServerConfig
	registry *player.Registry
	st       *store.Store
	results  *session.ResultBox
	session  *session.Manager

	mu       sync.Mutex
	handlers map[string]*Handler
	listener net.Listener
	closed   bool
}

// New builds a server. st may be nil, in which case Save is a no-op and
// player state lives only in memory.
func New(cfg config.ServerConfig, registry *player.Registry, st *store.Store) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		st:       st,
		results:  session.NewResultBox(),
		handlers: map[string]*Handler{},
	}
	s.session = session.NewManager(game.Settings{
		BoardSize:      cfg.BoardSize,
		MaxMoveSeconds: cfg.MoveTimeoutSeconds,
	}, registry, s.results, s, s, s)
	return s
}

func (s *Server) Session() *session.Manager { return s.session }

// Addr returns the bound listener address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run binds the TCP address and serves connections until Shutdown closes the
// listener or a non-recoverable accept error occurs.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	log.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		h := newHandler(s, conn)
		s.addHandler(h)
		go h.run()
	}
}

// Shutdown broadcasts the shutdown notice, stops accepting, drops every live
// connection and persists the player state. Safe to call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.listener
	handlers := make([]*Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h.send("The server is shutting down...")
		h.close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.Save()
	log.Info().Msg("server shut down")
}

// NotifyPlayer delivers message to the connection logged in as nickname.
// Players without a live connection are skipped.
func (s *Server) NotifyPlayer(nickname, message string) {
	if h := s.handlerFor(nickname); h != nil {
		h.send(message)
	}
}

// IsConnected reports whether a live connection is logged in as nickname.
func (s *Server) IsConnected(nickname string) bool {
	return s.handlerFor(nickname) != nil
}

// Save persists the registry through the store. A nil store makes this a
// no-op; persistence failures are logged, never propagated into game flow.
func (s *Server) Save() {
	if s.st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.st.SavePlayers(ctx, s.registry.All()); err != nil {
		log.Error().Err(err).Msg("save players failed")
	}
}

func (s *Server) handlerFor(nickname string) *Handler {
	if nickname == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handlers {
		if h.Nickname() == nickname {
			return h
		}
	}
	return nil
}

func (s *Server) addHandler(h *Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[h.id] = h
}

func (s *Server) removeHandler(h *Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, h.id)
}

package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gobang-server/internal/game"
	"gobang-server/internal/player"
	"gobang-server/internal/protocol"
	"gobang-server/internal/session"
)

// Handler is one TCP connection. The nickname is bound at login and never
// rebound; until then only register, login and comandos do anything useful.
type Handler struct {
	id   string
	srv  *Server
	conn net.Conn

	mu       sync.Mutex
	nickname string
}

func newHandler(srv *Server, conn net.Conn) *Handler {
	return &Handler{
		id:   uuid.NewString(),
		srv:  srv,
		conn: conn,
	}
}

func (h *Handler) Nickname() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nickname
}

func (h *Handler) bind(nickname string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nickname != "" {
		return false
	}
	h.nickname = nickname
	return true
}

// send writes one message followed by a newline. Multi-line messages arrive
// at the client as multiple lines.
func (h *Handler) send(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := fmt.Fprintln(h.conn, protocol.FormatMessage(message)); err != nil {
		log.Debug().Str("conn", h.id).Err(err).Msg("write to client failed")
	}
}

func (h *Handler) close() {
	_ = h.conn.Close()
}

func (h *Handler) run() {
	defer h.srv.removeHandler(h)
	defer h.close()

	log.Info().Str("conn", h.id).Str("remote", h.conn.RemoteAddr().String()).Msg("client connected")
	h.send("Welcome! Type /comandos for the command list.")

	scanner := bufio.NewScanner(h.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !protocol.IsValidCommand(line) {
			h.send("Invalid command!")
			continue
		}
		if h.dispatch(protocol.ParseCommand(line)) {
			return
		}
	}
	log.Info().Str("conn", h.id).Str("player", h.Nickname()).Msg("client disconnected")
}

// dispatch runs one command and reports whether the connection should close.
func (h *Handler) dispatch(cmd protocol.Command) bool {
	switch cmd.Name {
	case protocol.CmdRegister:
		h.handleRegister(cmd)
	case protocol.CmdLogin:
		h.handleLogin(cmd)
	case protocol.CmdMove:
		h.handleMove(cmd)
	case protocol.CmdGet:
		h.handleGet(cmd)
	case protocol.CmdPlay:
		h.handlePlay()
	case protocol.CmdWaitingList:
		h.send(h.srv.session.WaitingList())
	case protocol.CmdCommands:
		h.send(protocol.AvailableCommands())
	case protocol.CmdSurrender:
		h.handleSurrender()
	case protocol.CmdStartGame:
		h.handleStartGame(cmd)
	case protocol.CmdTimeout:
		h.handleTimeout()
	case protocol.CmdGetGames:
		h.handleGetGames(cmd)
	case protocol.CmdDisconnect:
		h.handleDisconnect()
		return true
	case protocol.CmdShutdown:
		return h.handleShutdown()
	}
	return false
}

func (h *Handler) requireLogin() (string, bool) {
	nick := h.Nickname()
	if nick == "" {
		h.send("Log in first!")
		return "", false
	}
	return nick, true
}

func (h *Handler) handleRegister(cmd protocol.Command) {
	if !cmd.HasParams(4) {
		h.send("Invalid format! Use: /register nickname password nationality age")
		return
	}
	age, err := strconv.Atoi(cmd.Param(4))
	if err != nil || age < 0 {
		h.send("Invalid format! Use: /register nickname password nationality age")
		return
	}
	rec := player.New(cmd.Param(1), cmd.Param(2), cmd.Param(3), age, cmd.Param(5))
	if err := h.srv.registry.Add(rec); err != nil {
		h.send("Nickname already in use!")
		return
	}
	log.Info().Str("player", rec.Nickname).Msg("player registered")
	h.srv.Save()
	h.send("Registration successful!")
}

func (h *Handler) handleLogin(cmd protocol.Command) {
	if !cmd.HasParams(2) {
		h.send("Invalid format! Use: /login nickname password")
		return
	}
	if h.Nickname() != "" {
		h.send("Already logged in!")
		return
	}
	rec, err := h.srv.registry.Get(cmd.Param(1))
	if err != nil || rec.Password != cmd.Param(2) {
		h.send("Login failed!")
		return
	}
	if other := h.srv.handlerFor(rec.Nickname); other != nil && other != h {
		h.send("Login failed!")
		return
	}
	if !h.bind(rec.Nickname) {
		h.send("Already logged in!")
		return
	}
	log.Info().Str("conn", h.id).Str("player", rec.Nickname).Msg("player logged in")
	h.send("Login successful!")
}

func (h *Handler) handlePlay() {
	nick, ok := h.requireLogin()
	if !ok {
		return
	}
	rec, err := h.srv.registry.Get(nick)
	if err != nil {
		h.send("Login failed!")
		return
	}
	switch err := h.srv.session.Enqueue(rec); {
	case errors.Is(err, session.ErrAlreadyQueued):
		h.send("You are already in the waiting queue!")
	case errors.Is(err, session.ErrAlreadyInMatch):
		h.send("You are already in a game!")
	case err != nil:
		h.send("Could not join the queue.")
	default:
		if h.srv.session.InQueue(nick) {
			h.send("You joined the waiting queue. An opponent will be matched soon.")
		}
	}
}

func (h *Handler) handleMove(cmd protocol.Command) {
	nick, ok := h.requireLogin()
	if !ok {
		return
	}
	if msg, ok := h.srv.results.Take(nick); ok {
		h.send(msg)
		return
	}
	if !cmd.HasParams(2) {
		h.send("Invalid format! Use: /move row col")
		return
	}
	row, err1 := strconv.Atoi(cmd.Param(1))
	col, err2 := strconv.Atoi(cmd.Param(2))
	if err1 != nil || err2 != nil {
		h.send("Invalid format! Use: /move row col")
		return
	}

	m := h.srv.session.FindActiveMatch(nick)
	if m == nil {
		h.send("You are not in a game! Use /play to join the queue.")
		return
	}

	result, err := m.ApplyMove(nick, row, col)
	tag := moveTag(nick, result, err)

	// Both players see every outcome, rejected moves included, with the
	// current board attached.
	nextSymbol := symbolFor(m, m.CurrentPlayer())
	board := m.BoardString()
	for _, p := range []string{m.PlayerA(), m.PlayerB()} {
		h.srv.NotifyPlayer(p, fmt.Sprintf(
			"RESULT: %s\nYour symbol: %s\nNext player: %s\n\nBOARD:\n%s",
			tag, symbolFor(m, p), nextSymbol, board))
	}

	if err == nil && (result == game.MoveWin || result == game.MoveDraw) {
		winner, hasWinner := m.Winner()
		loser := m.Other(winner)
		h.srv.session.EndMatch(m)
		if hasWinner {
			h.srv.NotifyPlayer(winner, "GAME OVER! You won!")
			h.srv.NotifyPlayer(loser, "GAME OVER! You lost!")
		} else {
			h.srv.NotifyPlayer(m.PlayerA(), "GAME OVER! The game ended in a draw.")
			h.srv.NotifyPlayer(m.PlayerB(), "GAME OVER! The game ended in a draw.")
		}
		return
	}
	h.send("RESULT: " + tag)
}

func moveTag(nick string, result game.MoveResult, err error) string {
	switch {
	case errors.Is(err, game.ErrGameOver):
		return "error:game_over"
	case errors.Is(err, game.ErrNotYourTurn):
		return "error:not_your_turn"
	case err != nil:
		return "error:invalid_move"
	}
	switch result {
	case game.MoveWin:
		return "WIN for " + nick
	case game.MoveDraw:
		return "DRAW!"
	default:
		return "refresh"
	}
}

// handleGet polls an arbitrary player's state by nickname; no login needed.
// The queried player's pending terminal result, if any, is consumed here.
func (h *Handler) handleGet(cmd protocol.Command) {
	target := cmd.Param(1)
	if target == "" {
		h.send("Invalid format! Use: /get nickname")
		return
	}
	if msg, ok := h.srv.results.Take(target); ok {
		h.send(msg)
		return
	}
	if !h.srv.registry.Has(target) {
		h.send(fmt.Sprintf("Player '%s' not found.", target))
		return
	}

	m := h.srv.session.FindActiveMatch(target)
	if m == nil {
		if h.srv.session.InQueue(target) {
			h.send("WAITING")
		} else {
			h.send("NOT_IN_QUEUE")
		}
		return
	}

	h.passTurnIfExpired(m)
	if m.GameOver() {
		m.IncChecksAfterEnd()
		log.Debug().Str("match_id", m.ID()).Int("checks_after_end", m.ChecksAfterEnd()).Msg("poll after terminal state")
		h.srv.session.EndMatch(m)
		if msg, ok := h.srv.results.Take(target); ok {
			h.send(msg)
			return
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "GAME_ON;PLAYER1:%s;PLAYER2:%s;OPPONENT:%s;BOARD:%s;",
		m.PlayerA(), m.PlayerB(), m.Other(target), m.BoardRows())
	if m.CurrentPlayer() == target {
		fmt.Fprintf(&sb, "YOUR_TURN;MOVE_START:%d;MAX_TIME:%d;", m.MoveStart().UnixMilli(), m.MaxMoveSeconds())
	} else {
		sb.WriteString("WAITING;")
	}
	h.send(sb.String())
}

func (h *Handler) handleSurrender() {
	nick, ok := h.requireLogin()
	if !ok {
		return
	}
	m := h.srv.session.FindActiveMatch(nick)
	if m == nil {
		h.send("You are not in a game!")
		return
	}
	opponent := m.Other(nick)
	m.DeclareWinner(opponent)
	h.srv.session.EndMatch(m)
	h.send("GAME OVER! You surrendered! You lost!")
	h.srv.NotifyPlayer(opponent, "GAME OVER! Your opponent surrendered. You won!")
}

func (h *Handler) handleStartGame(cmd protocol.Command) {
	if _, ok := h.requireLogin(); !ok {
		return
	}
	if !cmd.HasParams(2) {
		h.send("Invalid format! Use: /startgame nickname1 nickname2")
		return
	}
	p1, err1 := h.srv.registry.Get(cmd.Param(1))
	p2, err2 := h.srv.registry.Get(cmd.Param(2))
	if err1 != nil || err2 != nil {
		h.send("Player not found.")
		return
	}
	m, err := h.srv.session.CreateInvitedMatch(p1, p2)
	switch {
	case errors.Is(err, session.ErrSamePlayer):
		h.send("A player cannot play against themselves.")
		return
	case errors.Is(err, session.ErrMatchExists):
		h.send("There is already an active game between those two players.")
		return
	case err != nil:
		h.send("Could not start the game.")
		return
	}
	h.send("GAMEID:" + m.ID())
	h.srv.NotifyPlayer(p1.Nickname, fmt.Sprintf(
		"GAME STARTED\nYou are playing against: %s\nYour symbol: X\nUse /move [row] [col] to play\nYou start, %s", p2.Nickname, p1.Nickname))
	h.srv.NotifyPlayer(p2.Nickname, fmt.Sprintf(
		"GAME STARTED\nYou are playing against: %s\nYour symbol: O\nUse /move [row] [col] to play\nPlayer %s starts. Wait for your turn!", p1.Nickname, p1.Nickname))
}

// handleTimeout passes the requester's turn on the client's say-so: the
// client owns the visible countdown, so the server only checks that the
// requester is the current mover of a live match.
func (h *Handler) handleTimeout() {
	nick, ok := h.requireLogin()
	if !ok {
		return
	}
	m := h.srv.session.FindActiveMatch(nick)
	if m == nil || m.GameOver() || m.CurrentPlayer() != nick {
		h.send("timeout_ignored")
		return
	}
	m.PassTurnOnTimeout(nick)
	h.send("refresh")
}

func (h *Handler) handleGetGames(cmd protocol.Command) {
	if _, ok := h.requireLogin(); !ok {
		return
	}
	target := cmd.Param(1)
	if target == "" {
		h.send("Invalid format! Use: /getgames nickname")
		return
	}
	matches := h.srv.session.MatchesFor(target)
	if len(matches) == 0 {
		h.send("NO_GAMES")
		return
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		h.passTurnIfExpired(m)
		remaining := m.RemainingSeconds()
		if remaining < 0 {
			remaining = 0
		}
		lines = append(lines, fmt.Sprintf("GAMEID:%s;OPPONENT:%s;YOUR_TURN:%t;TIME:%d;",
			m.ID(), m.Other(target), m.CurrentPlayer() == target, remaining))
	}
	h.send(strings.Join(lines, "\n"))
}

func (h *Handler) handleDisconnect() {
	nick := h.Nickname()
	if nick != "" {
		h.srv.session.Dequeue(nick)
		for _, m := range h.srv.session.MatchesFor(nick) {
			opponent := m.Other(nick)
			m.DeclareWinner(opponent)
			h.srv.session.EndMatch(m)
			h.send(fmt.Sprintf("You disconnected, so player %s won!", opponent))
			h.srv.NotifyPlayer(opponent, fmt.Sprintf("Player %s disconnected. You won!", nick))
		}
	}
	h.send("Disconnecting from server...")
}

func (h *Handler) handleShutdown() bool {
	if h.Nickname() == "" {
		h.send("You need to log in to shut down the server!")
		return false
	}
	log.Info().Str("player", h.Nickname()).Msg("shutdown requested")
	h.srv.Shutdown()
	return true
}

// passTurnIfExpired applies the poll-driven move clock: when the current
// mover's time is up the turn passes without a mark. Returns whether a pass
// happened.
func (h *Handler) passTurnIfExpired(m *game.Match) bool {
	if m.GameOver() || m.RemainingSeconds() > 0 {
		return false
	}
	m.PassTurnOnTimeout(m.CurrentPlayer())
	return true
}

func symbolFor(m *game.Match, nickname string) string {
	if nickname == m.PlayerA() {
		return string(rune(game.MarkA))
	}
	return string(rune(game.MarkB))
}

package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gobang-server/internal/game"
	"gobang-server/internal/player"
	"gobang-server/internal/store"
)

// Notifier pushes a message to the live connection bound to nickname, if any.
// Delivery is fire-and-forget; disconnected players are silently skipped and
// durable outcomes go through the ResultBox instead.
type Notifier interface {
	NotifyPlayer(nickname, message string)
}

// Presence reports whether a live connection is currently bound to nickname.
type Presence interface {
	IsConnected(nickname string) bool
}

// Saver persists the player registry. Failures must be handled (logged) by
// the implementation; a failed save never rolls back in-memory state.
type Saver interface {
	Save()
}

// Manager owns the matchmaking queue, the active matches, and the per-player
// match index. One mutex serializes all mutating operations: enqueue-and-pair
// stays atomic across connections, and index updates never interleave.
type Manager struct {
	settings game.Settings
	registry *player.Registry
	results  *ResultBox
	notifier Notifier
	presence Presence
	saver    Saver

	mu       sync.Mutex
	queue    []*player.Record
	active   []*game.Match
	byPlayer map[string][]*game.Match
}

func NewManager(set game.Settings, reg *player.Registry, results *ResultBox, n Notifier, p Presence, s Saver) *Manager {
	return &Manager{
		settings: set,
		registry: reg,
		results:  results,
		notifier: n,
		presence: p,
		saver:    s,
		byPlayer: map[string][]*game.Match{},
	}
}

type notification struct {
	nickname string
	message  string
}

// Enqueue adds rec to the waiting queue and, when a second distinct player is
// waiting, pairs the two front entries into a new match. The check-and-pair
// step runs under the manager lock so concurrent enqueues can never both act
// as "the second player".
func (s *Manager) Enqueue(rec *player.Record) error {
	var pending []notification

	s.mu.Lock()
	if len(s.byPlayer[rec.Nickname]) > 0 {
		s.mu.Unlock()
		return ErrAlreadyInMatch
	}
	for _, waiting := range s.queue {
		if waiting.Nickname == rec.Nickname {
			s.mu.Unlock()
			return ErrAlreadyQueued
		}
	}
	s.queue = append(s.queue, rec)
	log.Info().Str("player", rec.Nickname).Int("queue_len", len(s.queue)).Msg("player queued")

	if len(s.queue) >= 2 {
		first, second := s.queue[0], s.queue[1]
		s.queue = s.queue[2:]
		m := game.NewMatch(s.settings, store.NewID(), first.Nickname, second.Nickname)
		s.registerLocked(m)
		log.Info().
			Str("match_id", m.ID()).
			Str("player_a", first.Nickname).
			Str("player_b", second.Nickname).
			Msg("players paired from queue")

		pending = append(pending,
			notification{first.Nickname, fmt.Sprintf(
				"GAME STARTED\nYou are playing against: %s\nYour symbol: X\nUse /move [row] [col] to play", second.Nickname)},
			notification{second.Nickname, fmt.Sprintf(
				"GAME STARTED\nYou are playing against: %s\nYour symbol: O\nUse /move [row] [col] to play", first.Nickname)},
			notification{first.Nickname, fmt.Sprintf("You start, %s", first.Nickname)},
			notification{second.Nickname, fmt.Sprintf("Player %s starts. Wait for your turn!", first.Nickname)},
		)
	}
	s.mu.Unlock()

	for _, n := range pending {
		s.notifier.NotifyPlayer(n.nickname, n.message)
	}
	return nil
}

// Dequeue removes nickname from the waiting queue; absent players are a no-op.
func (s *Manager) Dequeue(nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.queue {
		if rec.Nickname == nickname {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// InQueue reports whether nickname is currently waiting.
func (s *Manager) InQueue(nickname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.queue {
		if rec.Nickname == nickname {
			return true
		}
	}
	return false
}

// FindActiveMatch returns the first active match containing nickname, or nil.
func (s *Manager) FindActiveMatch(nickname string) *game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.active {
		if m.HasPlayer(nickname) {
			return m
		}
	}
	return nil
}

// MatchesFor returns every active match nickname is part of.
func (s *Manager) MatchesFor(nickname string) []*game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*game.Match(nil), s.byPlayer[nickname]...)
}

// MatchByID returns nickname's active match with the given id, or nil.
func (s *Manager) MatchByID(nickname, matchID string) *game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byPlayer[nickname] {
		if m.ID() == matchID {
			return m
		}
	}
	return nil
}

// CreateInvitedMatch starts a match between two named players outside the
// queue. A player may hold several concurrent invited matches, but never two
// against the same opponent: an active match between exactly this pair, in
// either order, is rejected.
func (s *Manager) CreateInvitedMatch(p1, p2 *player.Record) (*game.Match, error) {
	if p1.Nickname == p2.Nickname {
		return nil, ErrSamePlayer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byPlayer[p1.Nickname] {
		if m.HasPlayer(p2.Nickname) {
			return nil, ErrMatchExists
		}
	}
	m := game.NewMatch(s.settings, store.NewID(), p1.Nickname, p2.Nickname)
	s.registerLocked(m)
	log.Info().
		Str("match_id", m.ID()).
		Str("player_a", p1.Nickname).
		Str("player_b", p2.Nickname).
		Msg("invited match created")
	return m, nil
}

// EndMatch applies end-of-match bookkeeping exactly once, no matter how many
// code paths observe the terminal state: the match's end guard elects a
// single caller, which records history and stats, resolves the winner, fills
// the pending-result mailbox, notifies connected players, persists, and drops
// the match from every index.
func (s *Manager) EndMatch(m *game.Match) {
	if m == nil || !m.MarkEnded() {
		return
	}
	duration := time.Since(m.StartedAt())

	recA, errA := s.registry.Get(m.PlayerA())
	recB, errB := s.registry.Get(m.PlayerB())
	if errA != nil || errB != nil {
		log.Error().Str("match_id", m.ID()).Msg("match players missing from registry")
		s.remove(m)
		return
	}

	winner, hasWinner := m.Winner()
	if !hasWinner {
		// No declared winner: credit a still-connected side over a vanished
		// one; a clean draw (or both/neither reachable) stays a draw.
		aConnected := s.presence.IsConnected(recA.Nickname)
		bConnected := s.presence.IsConnected(recB.Nickname)
		if aConnected && !bConnected {
			winner, hasWinner = recA.Nickname, true
		} else if bConnected && !aConnected {
			winner, hasWinner = recB.Nickname, true
		}
	}

	s.mu.Lock()
	recA.AddHistory(m.ID(), duration)
	recB.AddHistory(m.ID(), duration)
	if hasWinner {
		winRec, loseRec := recA, recB
		if winner == recB.Nickname {
			winRec, loseRec = recB, recA
		}
		winRec.Wins++
		loseRec.Losses++
	}
	s.removeLocked(m)
	s.mu.Unlock()

	if hasWinner {
		loser := m.Other(winner)
		s.results.Put(winner, "GAME OVER! You won!")
		s.results.Put(loser, "GAME OVER! You lost!")
	} else {
		s.results.Put(recA.Nickname, "GAME OVER! The game ended in a draw.")
		s.results.Put(recB.Nickname, "GAME OVER! The game ended in a draw.")
	}

	playAgain := "The game is over! Type /play to join the queue and play again."
	for _, nick := range []string{recA.Nickname, recB.Nickname} {
		if s.presence.IsConnected(nick) {
			s.notifier.NotifyPlayer(nick, playAgain)
		}
	}

	log.Info().
		Str("match_id", m.ID()).
		Str("winner", winner).
		Bool("draw", !hasWinner).
		Dur("duration", duration).
		Msg("match ended")
	s.saver.Save()
}

// WaitingList renders the queue for the /waitingList command.
func (s *Manager) WaitingList() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("Players waiting:")
	for _, rec := range s.queue {
		sb.WriteString("\n")
		sb.WriteString(rec.Nickname)
		sb.WriteString(" ")
		sb.WriteString(rec.Nationality)
	}
	return sb.String()
}

// WaitingNicknames returns the queued nicknames in FIFO order.
func (s *Manager) WaitingNicknames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queue))
	for i, rec := range s.queue {
		out[i] = rec.Nickname
	}
	return out
}

// ActiveMatches returns a snapshot of all matches currently in progress.
func (s *Manager) ActiveMatches() []*game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*game.Match(nil), s.active...)
}

func (s *Manager) registerLocked(m *game.Match) {
	s.active = append(s.active, m)
	s.byPlayer[m.PlayerA()] = append(s.byPlayer[m.PlayerA()], m)
	s.byPlayer[m.PlayerB()] = append(s.byPlayer[m.PlayerB()], m)
}

func (s *Manager) remove(m *game.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(m)
}

func (s *Manager) removeLocked(m *game.Match) {
	for i, other := range s.active {
		if other == m {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	for _, nick := range []string{m.PlayerA(), m.PlayerB()} {
		list := s.byPlayer[nick]
		for i, other := range list {
			if other == m {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(s.byPlayer, nick)
		} else {
			s.byPlayer[nick] = list
		}
	}
}

package player

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrNicknameTaken = errors.New("nickname_taken")
	ErrUnknownPlayer = errors.New("unknown_player")
)

// Registry is the global player directory, keyed by nickname.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{players: map[string]*Record{}}
}

func (g *Registry) Add(rec *Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.players[rec.Nickname]; ok {
		return ErrNicknameTaken
	}
	g.players[rec.Nickname] = rec
	return nil
}

func (g *Registry) Get(nickname string) (*Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.players[nickname]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	return rec, nil
}

func (g *Registry) Has(nickname string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.players[nickname]
	return ok
}

// All returns the records sorted by nickname for stable iteration.
func (g *Registry) All() []*Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Record, 0, len(g.players))
	for _, rec := range g.players {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

// ReplaceAll swaps in a loaded player set. Used once at startup.
func (g *Registry) ReplaceAll(recs []*Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players = make(map[string]*Record, len(recs))
	for _, rec := range recs {
		g.players[rec.Nickname] = rec
	}
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

package session

import "sync"

// ResultBox is the pending-result mailbox: a one-shot store of terminal match
// messages per nickname, for clients that learn the outcome by polling rather
// than by holding the connection that ended the match.
type ResultBox struct {
	mu      sync.Mutex
	results map[string]string
}

func NewResultBox() *ResultBox {
	return &ResultBox{results: map[string]string{}}
}

func (b *ResultBox) Put(nickname, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[nickname] = message
}

// Take removes and returns the pending message for nickname. The entry is
// consumed by whichever side polls first.
func (b *ResultBox) Take(nickname string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.results[nickname]
	if ok {
		delete(b.results, nickname)
	}
	return msg, ok
}

package session

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"gobang-server/internal/game"
	"gobang-server/internal/player"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: map[string][]string{}}
}

func (f *fakeNotifier) NotifyPlayer(nickname, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[nickname] = append(f.messages[nickname], message)
}

func (f *fakeNotifier) sent(nickname string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[nickname]...)
}

type fakePresence struct {
	mu        sync.Mutex
	connected map[string]bool
}

func newFakePresence(nicks ...string) *fakePresence {
	f := &fakePresence{connected: map[string]bool{}}
	for _, n := range nicks {
		f.connected[n] = true
	}
	return f
}

func (f *fakePresence) IsConnected(nickname string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[nickname]
}

type fakeSaver struct {
	mu    sync.Mutex
	saves int
}

func (f *fakeSaver) Save() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type managerFixture struct {
	manager  *Manager
	registry *player.Registry
	results  *ResultBox
	notifier *fakeNotifier
	presence *fakePresence
	saver    *fakeSaver
	alice    *player.Record
	bob      *player.Record
	carol    *player.Record
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		registry: player.NewRegistry(),
		results:  NewResultBox(),
		notifier: newFakeNotifier(),
		presence: newFakePresence("alice", "bob", "carol"),
		saver:    &fakeSaver{},
		alice:    player.New("alice", "pw", "PT", 30, ""),
		bob:      player.New("bob", "pw", "ES", 25, ""),
		carol:    player.New("carol", "pw", "FR", 28, ""),
	}
	for _, rec := range []*player.Record{f.alice, f.bob, f.carol} {
		if err := f.registry.Add(rec); err != nil {
			t.Fatalf("add %s: %v", rec.Nickname, err)
		}
	}
	f.manager = NewManager(game.Settings{}, f.registry, f.results, f.notifier, f.presence, f.saver)
	return f
}

func TestEnqueuePairsTwoPlayers(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.Enqueue(f.alice); err != nil {
		t.Fatalf("enqueue alice: %v", err)
	}
	if !f.manager.InQueue("alice") {
		t.Fatal("alice should be waiting alone")
	}
	if err := f.manager.Enqueue(f.bob); err != nil {
		t.Fatalf("enqueue bob: %v", err)
	}

	if f.manager.InQueue("alice") || f.manager.InQueue("bob") {
		t.Fatal("paired players must leave the queue")
	}
	m := f.manager.FindActiveMatch("alice")
	if m == nil {
		t.Fatal("expected an active match for alice")
	}
	if m.PlayerA() != "alice" || m.PlayerB() != "bob" {
		t.Fatalf("pairing order = %s vs %s, want alice vs bob", m.PlayerA(), m.PlayerB())
	}
	if m.CurrentPlayer() != "alice" {
		t.Fatalf("first queued player must move first, got %s", m.CurrentPlayer())
	}

	aliceMsgs := strings.Join(f.notifier.sent("alice"), "\n")
	if !strings.Contains(aliceMsgs, "Your symbol: X") {
		t.Fatalf("alice should get symbol X, got %q", aliceMsgs)
	}
	bobMsgs := strings.Join(f.notifier.sent("bob"), "\n")
	if !strings.Contains(bobMsgs, "Your symbol: O") {
		t.Fatalf("bob should get symbol O, got %q", bobMsgs)
	}
	if !strings.Contains(bobMsgs, "Player alice starts") {
		t.Fatalf("bob should be told alice starts, got %q", bobMsgs)
	}
}

func TestEnqueueDuplicateRejected(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.Enqueue(f.alice); err != nil {
		t.Fatalf("enqueue alice: %v", err)
	}
	if err := f.manager.Enqueue(f.alice); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("second enqueue = %v, want ErrAlreadyQueued", err)
	}
}

func TestEnqueueWhileInMatchRejected(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.Enqueue(f.alice); err != nil {
		t.Fatalf("enqueue alice: %v", err)
	}
	if err := f.manager.Enqueue(f.bob); err != nil {
		t.Fatalf("enqueue bob: %v", err)
	}
	if err := f.manager.Enqueue(f.alice); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("enqueue during match = %v, want ErrAlreadyInMatch", err)
	}
}

func TestEnqueueConcurrentPairsOnce(t *testing.T) {
	f := newManagerFixture(t)

	var wg sync.WaitGroup
	for _, rec := range []*player.Record{f.alice, f.bob, f.carol} {
		wg.Add(1)
		go func(rec *player.Record) {
			defer wg.Done()
			if err := f.manager.Enqueue(rec); err != nil {
				t.Errorf("enqueue %s: %v", rec.Nickname, err)
			}
		}(rec)
	}
	wg.Wait()

	matches := f.manager.ActiveMatches()
	if len(matches) != 1 {
		t.Fatalf("active matches = %d, want 1", len(matches))
	}
	if got := len(f.manager.WaitingNicknames()); got != 1 {
		t.Fatalf("waiting players = %d, want 1", got)
	}
}

func TestDequeue(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.Enqueue(f.alice); err != nil {
		t.Fatalf("enqueue alice: %v", err)
	}
	f.manager.Dequeue("alice")
	if f.manager.InQueue("alice") {
		t.Fatal("alice should be gone after dequeue")
	}
	f.manager.Dequeue("alice") // absent is a no-op
}

func TestCreateInvitedMatch(t *testing.T) {
	f := newManagerFixture(t)

	m, err := f.manager.CreateInvitedMatch(f.alice, f.bob)
	if err != nil {
		t.Fatalf("create invited match: %v", err)
	}
	if m.PlayerA() != "alice" {
		t.Fatalf("inviter must move first, got %s", m.PlayerA())
	}

	if _, err := f.manager.CreateInvitedMatch(f.alice, f.bob); !errors.Is(err, ErrMatchExists) {
		t.Fatalf("duplicate pair = %v, want ErrMatchExists", err)
	}
	if _, err := f.manager.CreateInvitedMatch(f.bob, f.alice); !errors.Is(err, ErrMatchExists) {
		t.Fatalf("reversed pair = %v, want ErrMatchExists", err)
	}
	if _, err := f.manager.CreateInvitedMatch(f.alice, f.alice); !errors.Is(err, ErrSamePlayer) {
		t.Fatalf("self match = %v, want ErrSamePlayer", err)
	}

	if _, err := f.manager.CreateInvitedMatch(f.alice, f.carol); err != nil {
		t.Fatalf("second concurrent match for alice: %v", err)
	}
	if got := len(f.manager.MatchesFor("alice")); got != 2 {
		t.Fatalf("alice matches = %d, want 2", got)
	}
	if f.manager.MatchByID("alice", m.ID()) != m {
		t.Fatal("MatchByID should find alice's first match")
	}
}

func TestEndMatchRecordsOutcomeOnce(t *testing.T) {
	f := newManagerFixture(t)

	m, err := f.manager.CreateInvitedMatch(f.alice, f.bob)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	m.DeclareWinner("alice")

	f.manager.EndMatch(m)
	f.manager.EndMatch(m)

	if f.alice.Wins != 1 || f.alice.Losses != 0 {
		t.Fatalf("alice stats = %d/%d, want 1/0", f.alice.Wins, f.alice.Losses)
	}
	if f.bob.Wins != 0 || f.bob.Losses != 1 {
		t.Fatalf("bob stats = %d/%d, want 0/1", f.bob.Wins, f.bob.Losses)
	}
	if len(f.alice.MatchIDs) != 1 {
		t.Fatalf("alice history = %d entries, want 1", len(f.alice.MatchIDs))
	}
	if f.saver.count() != 1 {
		t.Fatalf("saves = %d, want 1", f.saver.count())
	}
	if f.manager.FindActiveMatch("alice") != nil {
		t.Fatal("finished match must leave the active set")
	}

	msg, ok := f.results.Take("alice")
	if !ok || !strings.Contains(msg, "You won!") {
		t.Fatalf("alice mailbox = %q, %v", msg, ok)
	}
	msg, ok = f.results.Take("bob")
	if !ok || !strings.Contains(msg, "You lost!") {
		t.Fatalf("bob mailbox = %q, %v", msg, ok)
	}
	if _, ok := f.results.Take("alice"); ok {
		t.Fatal("mailbox must be one-shot")
	}
}

func TestEndMatchDraw(t *testing.T) {
	f := newManagerFixture(t)

	m, err := f.manager.CreateInvitedMatch(f.alice, f.bob)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	f.manager.EndMatch(m)

	if f.alice.Wins != 0 || f.bob.Wins != 0 {
		t.Fatal("a draw must not credit wins")
	}
	msg, ok := f.results.Take("alice")
	if !ok || !strings.Contains(msg, "draw") {
		t.Fatalf("alice mailbox = %q, %v", msg, ok)
	}
}

func TestEndMatchNoWinnerCreditsConnectedSide(t *testing.T) {
	f := newManagerFixture(t)

	m, err := f.manager.CreateInvitedMatch(f.alice, f.bob)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	f.presence.mu.Lock()
	f.presence.connected["bob"] = false
	f.presence.mu.Unlock()

	f.manager.EndMatch(m)

	if f.alice.Wins != 1 {
		t.Fatalf("alice wins = %d, want 1 (opponent gone)", f.alice.Wins)
	}
	if f.bob.Losses != 1 {
		t.Fatalf("bob losses = %d, want 1", f.bob.Losses)
	}
}

func TestWaitingList(t *testing.T) {
	f := newManagerFixture(t)

	if got := f.manager.WaitingList(); got != "Players waiting:" {
		t.Fatalf("empty list = %q", got)
	}
	if err := f.manager.Enqueue(f.alice); err != nil {
		t.Fatalf("enqueue alice: %v", err)
	}
	want := "Players waiting:\nalice PT"
	if got := f.manager.WaitingList(); got != want {
		t.Fatalf("list = %q, want %q", got, want)
	}
}

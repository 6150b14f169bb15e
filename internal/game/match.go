package game

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultBoardSize      = 15
	DefaultMaxMoveSeconds = 30
)

// Cell holds the state of one board position. The zero byte is never used;
// boards are initialized to Empty at construction.
type Cell byte

const (
	Empty Cell = '.'
	MarkA Cell = 'X'
	MarkB Cell = 'O'
)

type MoveResult int

const (
	MoveTurnPassed MoveResult = iota
	MoveWin
	MoveDraw
)

// Settings fixes the board geometry and per-move clock for new matches.
type Settings struct {
	BoardSize      int
	MaxMoveSeconds int
}

func (s Settings) withDefaults() Settings {
	if s.BoardSize <= 0 {
		s.BoardSize = DefaultBoardSize
	}
	if s.MaxMoveSeconds < 0 {
		s.MaxMoveSeconds = DefaultMaxMoveSeconds
	}
	return s
}

// Match is one game between two players identified by nickname. PlayerA
// always moves first and plays MarkA. All mutating operations take the match
// lock; concurrent moves and timeout passes from different connections are
// serialized here.
type Match struct {
	id      string
	playerA string
	playerB string
	size    int
	maxMove int

	mu             sync.Mutex
	board          [][]Cell
	current        string
	gameOver       bool
	winner         string
	ended          bool
	checksAfterEnd int
	startedAt      time.Time
	lastMove       map[string]time.Time
}

func NewMatch(set Settings, id, playerA, playerB string) *Match {
	set = set.withDefaults()
	board := make([][]Cell, set.BoardSize)
	for i := range board {
		board[i] = make([]Cell, set.BoardSize)
		for j := range board[i] {
			board[i][j] = Empty
		}
	}
	now := time.Now()
	return &Match{
		id:        id,
		playerA:   playerA,
		playerB:   playerB,
		size:      set.BoardSize,
		maxMove:   set.MaxMoveSeconds,
		board:     board,
		current:   playerA,
		startedAt: now,
		lastMove: map[string]time.Time{
			playerA: now,
			playerB: now,
		},
	}
}

func (m *Match) ID() string { return m.id }

func (m *Match) PlayerA() string { return m.playerA }

func (m *Match) PlayerB() string { return m.playerB }

func (m *Match) BoardSize() int { return m.size }

func (m *Match) MaxMoveSeconds() int { return m.maxMove }

func (m *Match) StartedAt() time.Time { return m.startedAt }

// Other returns the opponent of the given player.
func (m *Match) Other(player string) string {
	if player == m.playerA {
		return m.playerB
	}
	return m.playerA
}

// HasPlayer reports whether nickname is one of the two participants.
func (m *Match) HasPlayer(nickname string) bool {
	return nickname == m.playerA || nickname == m.playerB
}

func (m *Match) CurrentPlayer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Match) GameOver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameOver
}

// Winner returns the winning nickname; ok is false while the match is in
// progress or when it ended in a draw.
func (m *Match) Winner() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner, m.winner != ""
}

// ApplyMove validates and applies one move for player at (row, col). On a
// non-terminal move the turn passes and the new mover's clock restarts.
func (m *Match) ApplyMove(player string, row, col int) (MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gameOver {
		return 0, ErrGameOver
	}
	if player != m.current {
		return 0, ErrNotYourTurn
	}
	if row < 0 || row >= m.size || col < 0 || col >= m.size || m.board[row][col] != Empty {
		return 0, ErrInvalidPosition
	}

	mark := MarkA
	if player == m.playerB {
		mark = MarkB
	}
	m.board[row][col] = mark
	m.lastMove[player] = time.Now()

	if m.winsAt(row, col) {
		m.gameOver = true
		m.winner = player
		return MoveWin, nil
	}
	if m.boardFull() {
		m.gameOver = true
		return MoveDraw, nil
	}

	m.current = m.Other(player)
	m.lastMove[m.current] = time.Now()
	return MoveTurnPassed, nil
}

// PassTurnOnTimeout passes the turn without marking a cell. It is a no-op
// unless the match is in progress and player is the current mover.
func (m *Match) PassTurnOnTimeout(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gameOver || player != m.current {
		return
	}
	m.current = m.Other(player)
	m.lastMove[m.current] = time.Now()
}

// DeclareWinner forces the match into a terminal state with the given winner.
// Used for surrender and disconnect forfeits; it bypasses move validation.
func (m *Match) DeclareWinner(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.winner = player
	m.gameOver = true
}

// MoveStart returns when the current mover's clock started.
func (m *Match) MoveStart() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts, ok := m.lastMove[m.current]; ok {
		return ts
	}
	return m.startedAt
}

// RemainingSeconds may be negative once the mover's clock has expired;
// callers clamp to zero for display.
func (m *Match) RemainingSeconds() int {
	return m.maxMove - int(time.Since(m.MoveStart())/time.Second)
}

// MarkEnded flips the end-of-match bookkeeping guard. It returns true for
// exactly one caller; all later calls see false and must skip the
// stat/persistence/notification side effects.
func (m *Match) MarkEnded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return false
	}
	m.ended = true
	return true
}

func (m *Match) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// IncChecksAfterEnd counts polls observed after the terminal state. Kept for
// observability only; no forfeiture semantics are attached.
func (m *Match) IncChecksAfterEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checksAfterEnd++
}

func (m *Match) ChecksAfterEnd() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checksAfterEnd
}

func (m *Match) MoveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.board {
		for j := range m.board[i] {
			if m.board[i][j] != Empty {
				count++
			}
		}
	}
	return count
}

// winsAt reports whether the mark just placed at (row, col) completes five or
// more in a row on any of the four axes. Caller holds the lock.
func (m *Match) winsAt(row, col int) bool {
	mark := m.board[row][col]
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1 +
			m.countDir(row, col, d[0], d[1], mark) +
			m.countDir(row, col, -d[0], -d[1], mark)
		if count >= 5 {
			return true
		}
	}
	return false
}

func (m *Match) countDir(row, col, dr, dc int, mark Cell) int {
	count := 0
	r, c := row+dr, col+dc
	for r >= 0 && r < m.size && c >= 0 && c < m.size && m.board[r][c] == mark {
		count++
		r += dr
		c += dc
	}
	return count
}

func (m *Match) boardFull() bool {
	for i := range m.board {
		for j := range m.board[i] {
			if m.board[i][j] == Empty {
				return false
			}
		}
	}
	return true
}

// BoardRows returns the compact wire form of the board: one run of cell
// glyphs per row, rows joined by '|'.
func (m *Match) BoardRows() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for i := range m.board {
		if i > 0 {
			sb.WriteByte('|')
		}
		for j := range m.board[i] {
			sb.WriteByte(byte(m.board[i][j]))
		}
	}
	return sb.String()
}

// BoardString renders the board as a human-readable grid with row/column
// indices and separators, empty cells as blanks.
func (m *Match) BoardString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("   ")
	for col := 0; col < m.size; col++ {
		fmtInt2(&sb, col)
		sb.WriteString("  ")
	}
	sb.WriteByte('\n')
	writeSeparator(&sb, m.size)

	for row := 0; row < m.size; row++ {
		fmtInt2(&sb, row)
		sb.WriteByte('|')
		for col := 0; col < m.size; col++ {
			sb.WriteByte(' ')
			if m.board[row][col] == Empty {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte(byte(m.board[row][col]))
			}
			sb.WriteString(" |")
		}
		sb.WriteByte('\n')
		writeSeparator(&sb, m.size)
	}
	return sb.String()
}

func writeSeparator(sb *strings.Builder, size int) {
	sb.WriteString("  +")
	for col := 0; col < size; col++ {
		sb.WriteString("---+")
	}
	sb.WriteByte('\n')
}

func fmtInt2(sb *strings.Builder, n int) {
	if n < 10 {
		sb.WriteByte(' ')
		sb.WriteByte(byte('0' + n))
		return
	}
	sb.WriteByte(byte('0' + n/10))
	sb.WriteByte(byte('0' + n%10))
}

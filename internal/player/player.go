package player

import (
	"fmt"
	"time"
)

const defaultPreferredColor = "#ffffff"

// Record is one registered player. The nickname is the identity: two records
// with the same nickname are the same player, and all containers key by it.
// Mutations after creation (stats, history) happen under the session
// manager's lock; the registry only guards map membership.
type Record struct {
	Nickname       string
	Password       string
	Nationality    string
	Age            int
	Photo          string
	PreferredColor string

	Wins   int
	Losses int

	// PlayTimes and MatchIDs are index-aligned and append-only.
	PlayTimes []time.Duration
	MatchIDs  []string
}

func New(nickname, password, nationality string, age int, photo string) *Record {
	return &Record{
		Nickname:       nickname,
		Password:       password,
		Nationality:    nationality,
		Age:            age,
		Photo:          photo,
		PreferredColor: defaultPreferredColor,
	}
}

// AddHistory appends one (match id, duration) pair. A match id already in the
// history is skipped so end-of-match bookkeeping stays single-entry even if
// retried.
func (r *Record) AddHistory(matchID string, d time.Duration) {
	for _, id := range r.MatchIDs {
		if id == matchID {
			return
		}
	}
	r.MatchIDs = append(r.MatchIDs, matchID)
	r.PlayTimes = append(r.PlayTimes, d)
}

func (r *Record) TotalPlayTime() time.Duration {
	var total time.Duration
	for _, d := range r.PlayTimes {
		total += d
	}
	return total
}

// AvgPlayTime returns zero when the player has no finished matches.
func (r *Record) AvgPlayTime() time.Duration {
	if len(r.PlayTimes) == 0 {
		return 0
	}
	return r.TotalPlayTime() / time.Duration(len(r.PlayTimes))
}

// FormatPlayTime renders a duration the way profiles and rankings show it,
// e.g. "2m 15s".
func FormatPlayTime(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

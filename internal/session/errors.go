package session

import "errors"

var (
	ErrAlreadyQueued  = errors.New("already_queued")
	ErrAlreadyInMatch = errors.New("already_in_match")
	ErrMatchExists    = errors.New("match_exists")
	ErrSamePlayer     = errors.New("same_player")
)

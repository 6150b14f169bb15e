package game

import "errors"

var (
	ErrGameOver        = errors.New("game_over")
	ErrNotYourTurn     = errors.New("not_your_turn")
	ErrInvalidPosition = errors.New("invalid_move")
)

package room

import (
	"errors"
	"time"
)

// OnChainStatus mirrors the game status stored by the staking contract.
type OnChainStatus int

const (
	StatusNonExistent OnChainStatus = iota
	StatusCreated
	StatusInProgress
	StatusCompleted
)

func (s OnChainStatus) String() string {
	switch s {
	case StatusNonExistent:
		return "nonexistent"
	case StatusCreated:
		return "created"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	ErrStatusRegression = errors.New("on-chain status cannot move backwards")
	ErrWinnerAlreadySet = errors.New("winner already recorded")
	ErrRaceNotRunning   = errors.New("race is not running")
)

// GameSession is the per-round chain-facing state of a room. A new session
// (fresh game id) is minted on room creation and on every reset.
type GameSession struct {
	GameID      string        `json:"gameId"`
	StakeAmount string        `json:"stakeAmount"`
	Status      OnChainStatus `json:"status"`
	CreatedAt   int64         `json:"createdAt,omitempty"` // contract creation timestamp, unix seconds
	Started     bool          `json:"started"`
	Ended       bool          `json:"ended"`
	Winner      string        `json:"winner,omitempty"`

	// ChainPlayers is the wallet list passed to createGame, frozen at
	// creation. The contract holds every one of them to the result, so
	// signature accounting must use this list, not the live roster.
	ChainPlayers []string `json:"chainPlayers,omitempty"`
}

// NewGameSession mints a session for the given room code.
func NewGameSession(roomCode string) GameSession {
	return GameSession{
		GameID:      NewGameID(roomCode, time.Now()),
		StakeAmount: "0",
	}
}

// AdvanceStatus moves the on-chain status forward. Equal status is a no-op
// so duplicate delivery of the same delta is harmless.
func (g *GameSession) AdvanceStatus(to OnChainStatus) error {
	if to < g.Status {
		return ErrStatusRegression
	}
	g.Status = to
	return nil
}

// SetWinner records the race result. It succeeds exactly once per session,
// while the race is running.
func (g *GameSession) SetWinner(address string) error {
	if g.Ended {
		if g.Winner == address {
			return nil
		}
		return ErrWinnerAlreadySet
	}
	if !g.Started {
		return ErrRaceNotRunning
	}
	g.Winner = address
	g.Ended = true
	return nil
}

// Reset mints a fresh session for the next round, keeping the stake amount.
func (g *GameSession) Reset(roomCode string) {
	stake := g.StakeAmount
	*g = NewGameSession(roomCode)
	g.StakeAmount = stake
}

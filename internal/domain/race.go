package domain

import "time"

// RaceRecord is one settled race, written by the winner after the payout
// claim goes through.
type RaceRecord struct {
	ID          int64     `json:"id"`
	GameID      string    `json:"gameId"`
	RoomCode    string    `json:"roomCode"`
	Winner      string    `json:"winner"`
	Players     []string  `json:"players"`
	StakeAmount string    `json:"stakeAmount"`
	TxHash      string    `json:"txHash,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

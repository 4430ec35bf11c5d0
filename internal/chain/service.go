// Package chain talks to the staking contract through an HTTP gateway that
// owns the actual wallet and RPC connection. Calls are asynchronous on the
// chain side; the gateway blocks until the transaction is mined or reverts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// GameStatus mirrors the uint8 the contract stores per game.
type GameStatus uint8

const (
	GameNonExistent GameStatus = iota
	GameCreated
	GameInProgress
	GameCompleted
)

// Receipt is the confirmation returned for a mined transaction.
type Receipt struct {
	TxHash    string `json:"txHash"`
	Timestamp int64  `json:"timestamp"`
}

// NetworkInfo describes the chain the gateway is connected to.
type NetworkInfo struct {
	ChainID int64  `json:"chainId,string"`
	Name    string `json:"name"`
}

// Service is the fixed call surface of the staking contract. One
// implementation is chosen at build time; there is no runtime probing for
// alternative call styles.
type Service interface {
	CreateGame(ctx context.Context, gameID string, players []string, stakeWei *big.Int) (*Receipt, error)
	Stake(ctx context.Context, gameID string, valueWei *big.Int) (*Receipt, error)
	SubmitResult(ctx context.Context, gameID, winner string, signatures [][]byte) (*Receipt, error)
	GameStatus(ctx context.Context, gameID string) (GameStatus, error)
	CreationTimestamp(ctx context.Context, gameID string) (int64, error)
	NetworkInfo(ctx context.Context) (*NetworkInfo, error)
}

// Reason classifies why a chain call failed.
type Reason string

const (
	ReasonRejected Reason = "rejected" // wallet refused to sign
	ReasonReverted Reason = "reverted" // transaction mined but reverted
	ReasonNetwork  Reason = "network"  // gateway or RPC unreachable
)

// CallError is the typed failure surfaced for any contract call. Local
// optimistic state must be rolled back when one is returned; the call
// itself stays retryable.
type CallError struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("chain %s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// AsCallError unwraps err to a CallError, if it is one.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Package staking sequences the three-phase on-chain flow for a race:
// create the game, collect every participant's stake, and submit the
// signed result. It owns no replication; the peer loops call into it and
// apply the outcomes to room state themselves.
package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"monarcade/internal/chain"
	"monarcade/internal/room"
)

var (
	ErrPlayerCount   = errors.New("player count must be between 2 and 10")
	ErrZeroStake     = errors.New("stake amount must be above zero")
	ErrNoGameOnChain = errors.New("game does not exist on chain")
)

// Coordinator drives contract calls for one peer's wallet.
type Coordinator struct {
	svc      chain.Service
	signer   chain.Signer
	contract string
	chainID  int64
}

func New(svc chain.Service, signer chain.Signer, contract string, chainID int64) *Coordinator {
	return &Coordinator{svc: svc, signer: signer, contract: contract, chainID: chainID}
}

// CreateGame performs the host-only createGame call and returns the
// contract's creation timestamp, which later anchors result signatures.
func (c *Coordinator) CreateGame(ctx context.Context, gameID string, players []string, stakeAmount string) (int64, error) {
	if len(players) < 2 || len(players) > room.MaxPlayers {
		return 0, ErrPlayerCount
	}
	wei, err := stakeWei(stakeAmount)
	if err != nil {
		return 0, err
	}

	rcpt, err := c.svc.CreateGame(ctx, gameID, players, wei)
	if err != nil {
		return 0, err
	}
	if rcpt.Timestamp != 0 {
		return rcpt.Timestamp, nil
	}
	return c.svc.CreationTimestamp(ctx, gameID)
}

// Stake submits this wallet's stake for the game. Callers guard against
// double submission with the player's HasStaked flag before calling.
func (c *Coordinator) Stake(ctx context.Context, gameID string, stakeAmount string) error {
	wei, err := stakeWei(stakeAmount)
	if err != nil {
		return err
	}
	_, err = c.svc.Stake(ctx, gameID, wei)
	return err
}

// GameStatus reads the contract-side status for a game.
func (c *Coordinator) GameStatus(ctx context.Context, gameID string) (chain.GameStatus, error) {
	return c.svc.GameStatus(ctx, gameID)
}

// ResultHash computes the message every non-winner signs for a finished
// session.
func (c *Coordinator) ResultHash(s room.GameSession) [32]byte {
	return chain.ResultHash(s.GameID, s.Winner, c.contract, c.chainID, s.CreatedAt)
}

// SignResult produces this wallet's attestation of the session result.
func (c *Coordinator) SignResult(s room.GameSession) ([]byte, error) {
	if !s.Ended || s.Winner == "" {
		return nil, fmt.Errorf("staking: no result to sign")
	}
	return c.signer.SignResult(c.ResultHash(s))
}

// VerifySignature checks an attestation relayed from another player.
func (c *Coordinator) VerifySignature(s room.GameSession, signer string, sig []byte) error {
	return chain.VerifyResult(signer, c.ResultHash(s), sig)
}

// ExpectedSigners lists the players whose signatures the winner needs:
// every wallet the game was created with, except the winner. The list is
// frozen in the session at creation because the contract holds departed
// players to the result just the same; before the game exists on chain
// it falls back to the live non-bot roster. This is an N-of-N
// collection; one absent signer stalls the payout.
func ExpectedSigners(st *room.State, winner string) []string {
	players := st.Session.ChainPlayers
	if len(players) == 0 {
		for _, p := range st.Roster.Humans() {
			players = append(players, p.Address)
		}
	}
	var out []string
	for _, a := range players {
		if a != winner {
			out = append(out, a)
		}
	}
	return out
}

// CollectedSignatures returns the attestations present for the expected
// signers, in creation order. A signer who left the roster contributes
// nothing, which keeps the local count honest about the contract's view.
func CollectedSignatures(st *room.State, winner string) [][]byte {
	var out [][]byte
	for _, a := range ExpectedSigners(st, winner) {
		if p, ok := st.Roster.Get(a); ok && len(p.Signature) > 0 {
			out = append(out, p.Signature)
		}
	}
	return out
}

// ReadyToSubmit reports whether every expected signature has arrived.
func ReadyToSubmit(st *room.State, winner string) bool {
	return len(CollectedSignatures(st, winner)) == len(ExpectedSigners(st, winner))
}

// SubmitResult sends the winner's payout claim. A zero-opponent game goes
// out with an empty signature list.
func (c *Coordinator) SubmitResult(ctx context.Context, st *room.State) error {
	s := st.Session
	if s.Status == room.StatusNonExistent {
		return ErrNoGameOnChain
	}
	if !s.Ended || s.Winner == "" {
		return fmt.Errorf("staking: no result to submit")
	}
	if !ReadyToSubmit(st, s.Winner) {
		return fmt.Errorf("staking: signatures incomplete")
	}
	_, err := c.svc.SubmitResult(ctx, s.GameID, s.Winner, CollectedSignatures(st, s.Winner))
	return err
}

func stakeWei(amount string) (*big.Int, error) {
	wei, err := chain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if wei.Sign() <= 0 {
		return nil, ErrZeroStake
	}
	return wei, nil
}

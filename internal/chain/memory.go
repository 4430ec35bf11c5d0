package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Memory is an in-process stand-in for the gateway, tracking games the
// way the contract does. Smoke tooling and tests run full rounds against
// it without a chain. Each peer gets its own caller view via For, since
// the real gateway knows which wallet it signs for.
type Memory struct {
	mu    sync.Mutex
	games map[string]*memGame
	seq   int
}

type memGame struct {
	players   map[string]bool
	stakeWei  *big.Int
	staked    map[string]bool
	status    GameStatus
	createdAt int64
	winner    string
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*memGame)}
}

// For binds the memory contract to one wallet's point of view.
func (m *Memory) For(wallet string) Service {
	return &memCaller{mem: m, wallet: wallet}
}

func (m *Memory) createGame(gameID string, players []string, stakeWei *big.Int) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[gameID]; ok {
		return nil, &CallError{Op: "createGame", Reason: ReasonReverted, Err: errors.New("game exists")}
	}
	set := make(map[string]bool, len(players))
	for _, p := range players {
		set[p] = true
	}
	g := &memGame{
		players:   set,
		stakeWei:  new(big.Int).Set(stakeWei),
		staked:    make(map[string]bool),
		status:    GameCreated,
		createdAt: time.Now().Unix(),
	}
	m.games[gameID] = g
	return m.receiptLocked(g.createdAt), nil
}

func (m *Memory) stake(wallet, gameID string, valueWei *big.Int) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, &CallError{Op: "stake", Reason: ReasonReverted, Err: errors.New("no such game")}
	}
	if g.status != GameCreated {
		return nil, &CallError{Op: "stake", Reason: ReasonReverted, Err: errors.New("wrong status")}
	}
	if !g.players[wallet] {
		return nil, &CallError{Op: "stake", Reason: ReasonReverted, Err: errors.New("not a participant")}
	}
	if g.staked[wallet] {
		return nil, &CallError{Op: "stake", Reason: ReasonReverted, Err: errors.New("already staked")}
	}
	if valueWei.Cmp(g.stakeWei) != 0 {
		return nil, &CallError{Op: "stake", Reason: ReasonReverted, Err: errors.New("wrong stake value")}
	}

	g.staked[wallet] = true
	if len(g.staked) == len(g.players) {
		g.status = GameInProgress
	}
	return m.receiptLocked(time.Now().Unix()), nil
}

func (m *Memory) submitResult(wallet, gameID, winner string, signatures [][]byte) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, &CallError{Op: "submitResult", Reason: ReasonReverted, Err: errors.New("no such game")}
	}
	if g.status != GameInProgress {
		return nil, &CallError{Op: "submitResult", Reason: ReasonReverted, Err: errors.New("wrong status")}
	}
	if wallet != winner || !g.players[winner] {
		return nil, &CallError{Op: "submitResult", Reason: ReasonReverted, Err: errors.New("caller is not the winner")}
	}
	if len(signatures) < len(g.players)-1 {
		return nil, &CallError{Op: "submitResult", Reason: ReasonReverted, Err: errors.New("missing signatures")}
	}

	g.winner = winner
	g.status = GameCompleted
	return m.receiptLocked(time.Now().Unix()), nil
}

func (m *Memory) gameStatus(gameID string) GameStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		return g.status
	}
	return GameNonExistent
}

func (m *Memory) creationTimestamp(gameID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return 0, &CallError{Op: "creationTimestamp", Reason: ReasonReverted, Err: errors.New("no such game")}
	}
	return g.createdAt, nil
}

func (m *Memory) receiptLocked(ts int64) *Receipt {
	m.seq++
	return &Receipt{TxHash: fmt.Sprintf("0xmem%08d", m.seq), Timestamp: ts}
}

type memCaller struct {
	mem    *Memory
	wallet string
}

func (c *memCaller) CreateGame(_ context.Context, gameID string, players []string, stakeWei *big.Int) (*Receipt, error) {
	return c.mem.createGame(gameID, players, stakeWei)
}

func (c *memCaller) Stake(_ context.Context, gameID string, valueWei *big.Int) (*Receipt, error) {
	return c.mem.stake(c.wallet, gameID, valueWei)
}

func (c *memCaller) SubmitResult(_ context.Context, gameID, winner string, signatures [][]byte) (*Receipt, error) {
	return c.mem.submitResult(c.wallet, gameID, winner, signatures)
}

func (c *memCaller) GameStatus(_ context.Context, gameID string) (GameStatus, error) {
	return c.mem.gameStatus(gameID), nil
}

func (c *memCaller) CreationTimestamp(_ context.Context, gameID string) (int64, error) {
	return c.mem.creationTimestamp(gameID)
}

func (c *memCaller) NetworkInfo(_ context.Context) (*NetworkInfo, error) {
	return &NetworkInfo{ChainID: 10143, Name: "monad-memory"}, nil
}

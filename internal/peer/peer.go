// Package peer implements the replicated room protocol. One process runs
// exactly one node per room: a Host, which owns the canonical state and
// linearizes every mutation, or a Follower, which applies host deltas to a
// local replica and sends intents upstream. Each node is a single
// goroutine; links, chain calls, and callers all funnel into that loop.
package peer

import (
	"errors"
	"sync"
	"time"

	"monarcade/internal/chain"
	"monarcade/internal/lifecycle"
	"monarcade/internal/room"
	"monarcade/internal/transport"
)

var (
	ErrClosed          = errors.New("peer: node closed")
	ErrNotHost         = errors.New("peer: only the host can do that")
	ErrBadRoomCode     = errors.New("peer: malformed room code")
	ErrJoinFailed      = errors.New("peer: could not join room")
	ErrCodeUnavailable = errors.New("peer: no free room code, try again")
)

// EventKind tags notifications pushed to the embedding UI.
type EventKind string

const (
	EventRoomUpdated   EventKind = "room_updated"
	EventRaceStarted   EventKind = "race_started"
	EventRaceEnded     EventKind = "race_ended"
	EventGameCompleted EventKind = "game_completed"
	EventRoomClosed    EventKind = "room_closed"
	EventError         EventKind = "error"
)

type Event struct {
	Kind    EventKind
	Message string
}

// Config wires a node to its transport and chain gateway.
type Config struct {
	Transport transport.Transport
	Chain     chain.Service
	Signer    chain.Signer

	// Contract and ChainID anchor result signatures to one deployment.
	Contract string
	ChainID  int64

	JoinRetries    int           // connect attempts before giving up
	JoinRetryDelay time.Duration // pause between attempts
	CodeAttempts   int           // room codes tried before ErrCodeUnavailable
	CallTimeout    time.Duration // per chain call
	PollInterval   time.Duration // completion polling cadence
}

func (c Config) withDefaults() Config {
	if c.JoinRetries <= 0 {
		c.JoinRetries = 5
	}
	if c.JoinRetryDelay <= 0 {
		c.JoinRetryDelay = 2 * time.Second
	}
	if c.CodeAttempts <= 0 {
		c.CodeAttempts = 5
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	return c
}

// Node is the UI-facing surface shared by hosts and followers. Host-only
// actions return ErrNotHost on a follower.
type Node interface {
	Address() string
	RoomCode() string
	IsHost() bool
	Snapshot() room.Snapshot
	Phase() lifecycle.Phase
	Events() <-chan Event

	SetStake(amount string) error
	ToggleReady(ready bool) error
	AddBot() error
	StartRace() error
	ReportRaceEnd(winner string) error
	ResetGame() error
	Leave() error
}

// command is a closure run inside the node's loop; the caller blocks on
// the reply so every public method is linearized with message handling.
type command struct {
	fn    func() error
	reply chan error
}

// core is the loop plumbing shared by Host and Follower.
type core struct {
	cmds   chan command
	tasks  chan func()
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newCore() core {
	return core{
		cmds:   make(chan command),
		tasks:  make(chan func(), 16),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

func (c *core) do(fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// post hands a continuation back to the loop from a helper goroutine.
func (c *core) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

// emit never blocks the loop; a UI that stops draining loses events, not
// the room.
func (c *core) emit(kind EventKind, msg string) {
	select {
	case c.events <- Event{Kind: kind, Message: msg}:
	default:
	}
}

func (c *core) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *core) Events() <-chan Event { return c.events }

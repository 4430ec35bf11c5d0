package room

import (
	"errors"
	"math/rand"
)

var (
	ErrDuplicatePlayer = errors.New("player already in room")
	ErrUnknownPlayer   = errors.New("player not in room")
	ErrRoomFull        = errors.New("room is full")
)

// MaxPlayers is the contract-side cap on participants per game.
const MaxPlayers = 10

// neonColors matches the palette cars are drawn with.
var neonColors = []string{
	"#ff00ff", "#00ffff", "#ff3300", "#33ff00", "#ff0099",
	"#00ff99", "#9900ff", "#ffff00", "#2222f7", "#bd2046",
}

// RandomColor picks a display color for a joining player.
func RandomColor() string {
	return neonColors[rand.Intn(len(neonColors))]
}

// Roster is the join-ordered set of players in a room. On the host it is the
// source of truth; on followers it is a replica reconciled from host messages.
type Roster struct {
	order   []string
	players map[string]*PlayerRecord
}

func NewRoster() *Roster {
	return &Roster{players: make(map[string]*PlayerRecord)}
}

// Add appends a player. Adding an address that is already present is an
// error on the host; replicas use Put instead, which is idempotent.
func (r *Roster) Add(p PlayerRecord) error {
	if _, ok := r.players[p.Address]; ok {
		return ErrDuplicatePlayer
	}
	if len(r.order) >= MaxPlayers {
		return ErrRoomFull
	}
	rec := p.Clone()
	r.players[p.Address] = &rec
	r.order = append(r.order, p.Address)
	return nil
}

// Put inserts or overwrites a player record, keeping join order stable for
// addresses already present. Used when applying replicated state.
func (r *Roster) Put(p PlayerRecord) {
	if _, ok := r.players[p.Address]; !ok {
		r.order = append(r.order, p.Address)
	}
	rec := p.Clone()
	r.players[p.Address] = &rec
}

// Remove deletes a player, preserving the order of the rest.
func (r *Roster) Remove(address string) bool {
	if _, ok := r.players[address]; !ok {
		return false
	}
	delete(r.players, address)
	for i, a := range r.order {
		if a == address {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Patch applies a partial update to one player.
func (r *Roster) Patch(address string, patch PlayerPatch) error {
	p, ok := r.players[address]
	if !ok {
		return ErrUnknownPlayer
	}
	p.Apply(patch)
	return nil
}

// Get returns a copy of the record for the given address.
func (r *Roster) Get(address string) (PlayerRecord, bool) {
	p, ok := r.players[address]
	if !ok {
		return PlayerRecord{}, false
	}
	return p.Clone(), true
}

// Len returns the number of players, bots included.
func (r *Roster) Len() int { return len(r.order) }

// Players returns the roster in join order.
func (r *Roster) Players() []PlayerRecord {
	out := make([]PlayerRecord, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.players[a].Clone())
	}
	return out
}

// Addresses returns all addresses in join order.
func (r *Roster) Addresses() []string {
	return append([]string(nil), r.order...)
}

// Humans returns the non-bot players in join order.
func (r *Roster) Humans() []PlayerRecord {
	var out []PlayerRecord
	for _, a := range r.order {
		if !r.players[a].IsBot {
			out = append(out, r.players[a].Clone())
		}
	}
	return out
}

// AllHumansReady reports whether every non-bot player is ready.
func (r *Roster) AllHumansReady() bool {
	for _, a := range r.order {
		p := r.players[a]
		if !p.IsBot && !p.Ready {
			return false
		}
	}
	return len(r.order) > 0
}

// AllHumansStaked reports whether every non-bot player has staked. Bots are
// treated as pre-staked, so they never hold the barrier.
func (r *Roster) AllHumansStaked() bool {
	for _, a := range r.order {
		p := r.players[a]
		if !p.IsBot && !p.HasStaked {
			return false
		}
	}
	return len(r.order) > 0
}

// ResetRound clears per-round player state for a new game id.
func (r *Roster) ResetRound() {
	for _, p := range r.players {
		p.Ready = false
		p.HasStaked = false
		p.Signature = nil
	}
}

// Restore replaces the whole roster with the given snapshot, in order.
func (r *Roster) Restore(players []PlayerRecord) {
	r.order = r.order[:0]
	r.players = make(map[string]*PlayerRecord, len(players))
	for _, p := range players {
		r.Put(p)
	}
}

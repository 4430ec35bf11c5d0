// Package lifecycle validates race phase transitions. It is pure: callers
// hand it room state and get a verdict, the replication engine decides
// what to do with it.
package lifecycle

import (
	"errors"

	"monarcade/internal/chain"
	"monarcade/internal/room"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseCreated    Phase = "created"
	PhaseStaking    Phase = "staking"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

var (
	ErrBadStake          = errors.New("stake amount is not a valid MON value")
	ErrStakeNotSet       = errors.New("stake must be above zero before readying up")
	ErrStakeLocked       = errors.New("stake cannot change once the game exists on chain")
	ErrUnreadyAfterStake = errors.New("cannot un-ready after staking")
	ErrNotEnoughPlayers  = errors.New("need at least 2 players")
	ErrTooManyPlayers    = errors.New("room is limited to 10 players")
	ErrOutOfPhase        = errors.New("action not allowed in current phase")
	ErrUnknownWinner     = errors.New("winner is not in the room")
)

// PhaseOf derives the current phase from replicated state.
func PhaseOf(st *room.State) Phase {
	switch {
	case st.Session.Ended:
		return PhaseCompleted
	case st.Session.Started || st.Session.Status == room.StatusInProgress:
		return PhaseInProgress
	case st.Session.Status == room.StatusCreated:
		if anyHumanStaked(st.Roster) {
			return PhaseStaking
		}
		return PhaseCreated
	default:
		return PhaseLobby
	}
}

func anyHumanStaked(r *room.Roster) bool {
	for _, p := range r.Humans() {
		if p.HasStaked {
			return true
		}
	}
	return false
}

// CheckSetStake validates a stake-amount change. The amount is locked the
// moment the game exists on chain.
func CheckSetStake(st *room.State, amount string) error {
	if st.Session.Status != room.StatusNonExistent || st.Session.Started {
		return ErrStakeLocked
	}
	if _, err := chain.ParseAmount(amount); err != nil {
		return ErrBadStake
	}
	return nil
}

// CheckReady validates a ready toggle for one player.
func CheckReady(st *room.State, address string, ready bool) error {
	p, ok := st.Roster.Get(address)
	if !ok {
		return room.ErrUnknownPlayer
	}
	if st.Session.Started {
		return ErrOutOfPhase
	}
	if ready && !chain.PositiveAmount(st.Session.StakeAmount) {
		return ErrStakeNotSet
	}
	// Funds are committed once staked; backing out is not a thing.
	if !ready && p.HasStaked {
		return ErrUnreadyAfterStake
	}
	return nil
}

// CheckCreateGame validates the Lobby→Created transition on the host.
func CheckCreateGame(st *room.State) error {
	if st.Session.Status != room.StatusNonExistent {
		return ErrOutOfPhase
	}
	if !chain.PositiveAmount(st.Session.StakeAmount) {
		return ErrStakeNotSet
	}
	humans := len(st.Roster.Humans())
	if humans < 2 {
		return ErrNotEnoughPlayers
	}
	if st.Roster.Len() > room.MaxPlayers {
		return ErrTooManyPlayers
	}
	return nil
}

// BotTestEligible reports whether the room qualifies for the single-player
// bot test mode, which skips the chain entirely.
func BotTestEligible(st *room.State) bool {
	humans := st.Roster.Humans()
	return len(humans) == 1 && st.Roster.Len() > len(humans) &&
		st.Session.Status == room.StatusNonExistent
}

// CheckStake validates an individual stake call.
func CheckStake(st *room.State, address string) error {
	p, ok := st.Roster.Get(address)
	if !ok {
		return room.ErrUnknownPlayer
	}
	if st.Session.Status != room.StatusCreated {
		return ErrOutOfPhase
	}
	if p.IsBot || p.HasStaked {
		return ErrOutOfPhase
	}
	return nil
}

// BarrierReached reports whether the staking barrier is crossed: every
// non-bot player has staked and the race has not started yet. The caller
// re-checks the full roster on every confirmation, so out-of-order
// arrivals cannot fire the transition early.
func BarrierReached(st *room.State) bool {
	if st.Session.Started || st.Session.Status != room.StatusCreated {
		return false
	}
	return st.Roster.AllHumansStaked()
}

// CheckReportEnd validates recording the race winner.
func CheckReportEnd(st *room.State, winner string) error {
	if !st.Session.Started || st.Session.Ended {
		return ErrOutOfPhase
	}
	if _, ok := st.Roster.Get(winner); !ok {
		return ErrUnknownWinner
	}
	return nil
}

// CheckReset validates the Completed→Lobby transition.
func CheckReset(st *room.State) error {
	if !st.Session.Ended {
		return ErrOutOfPhase
	}
	return nil
}

package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"monarcade/internal/room"
)

func newRoom(t *testing.T, humans int, bots int) *room.State {
	t.Helper()
	st := room.NewState("123456", "0xHost")
	for i := 0; i < humans; i++ {
		addr := "0xHost"
		if i > 0 {
			addr = fmt.Sprintf("0xP%d", i)
		}
		if err := st.Roster.Add(room.PlayerRecord{Address: addr}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < bots; i++ {
		if err := st.Roster.Add(room.PlayerRecord{
			Address: fmt.Sprintf("0xBot%d", i), Ready: true, IsBot: true,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestPhaseProgression(t *testing.T) {
	st := newRoom(t, 2, 0)
	if PhaseOf(st) != PhaseLobby {
		t.Fatalf("fresh room phase: %s", PhaseOf(st))
	}

	st.Session.Status = room.StatusCreated
	if PhaseOf(st) != PhaseCreated {
		t.Fatalf("after create: %s", PhaseOf(st))
	}

	staked := true
	st.Roster.Patch("0xHost", room.PlayerPatch{HasStaked: &staked})
	if PhaseOf(st) != PhaseStaking {
		t.Fatalf("after first stake: %s", PhaseOf(st))
	}

	st.Session.Started = true
	if PhaseOf(st) != PhaseInProgress {
		t.Fatalf("after start: %s", PhaseOf(st))
	}

	st.Session.Ended = true
	if PhaseOf(st) != PhaseCompleted {
		t.Fatalf("after end: %s", PhaseOf(st))
	}
}

func TestCheckSetStake(t *testing.T) {
	st := newRoom(t, 2, 0)

	if err := CheckSetStake(st, "0.5"); err != nil {
		t.Fatalf("set in lobby: %v", err)
	}
	if err := CheckSetStake(st, "nope"); !errors.Is(err, ErrBadStake) {
		t.Fatalf("bad amount: %v", err)
	}

	st.Session.Status = room.StatusCreated
	if err := CheckSetStake(st, "0.5"); !errors.Is(err, ErrStakeLocked) {
		t.Fatalf("set after create: %v", err)
	}
}

func TestCheckReady(t *testing.T) {
	st := newRoom(t, 2, 0)

	// No stake amount yet: readying up is meaningless.
	if err := CheckReady(st, "0xHost", true); !errors.Is(err, ErrStakeNotSet) {
		t.Fatalf("ready without stake: %v", err)
	}

	st.Session.StakeAmount = "0.5"
	if err := CheckReady(st, "0xHost", true); err != nil {
		t.Fatalf("ready with stake: %v", err)
	}
	if err := CheckReady(st, "0xGhost", true); !errors.Is(err, room.ErrUnknownPlayer) {
		t.Fatalf("unknown player: %v", err)
	}

	// Un-ready is fine before staking, forbidden after.
	if err := CheckReady(st, "0xHost", false); err != nil {
		t.Fatalf("un-ready before stake: %v", err)
	}
	staked := true
	st.Roster.Patch("0xHost", room.PlayerPatch{HasStaked: &staked})
	if err := CheckReady(st, "0xHost", false); !errors.Is(err, ErrUnreadyAfterStake) {
		t.Fatalf("un-ready after stake: %v", err)
	}
}

func TestCheckCreateGame(t *testing.T) {
	st := newRoom(t, 1, 0)
	st.Session.StakeAmount = "0.5"

	if err := CheckCreateGame(st); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("solo create: %v", err)
	}

	st = newRoom(t, 2, 0)
	if err := CheckCreateGame(st); !errors.Is(err, ErrStakeNotSet) {
		t.Fatalf("create without stake: %v", err)
	}

	st.Session.StakeAmount = "0.5"
	if err := CheckCreateGame(st); err != nil {
		t.Fatalf("valid create: %v", err)
	}

	st.Session.Status = room.StatusCreated
	if err := CheckCreateGame(st); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("double create: %v", err)
	}
}

func TestBotTestEligible(t *testing.T) {
	if BotTestEligible(newRoom(t, 1, 2)) != true {
		t.Fatal("one human plus bots should qualify")
	}
	if BotTestEligible(newRoom(t, 1, 0)) {
		t.Fatal("lone human without bots qualified")
	}
	if BotTestEligible(newRoom(t, 2, 1)) {
		t.Fatal("two humans qualified for bot test")
	}
}

func TestStakingBarrier(t *testing.T) {
	st := newRoom(t, 3, 0)
	st.Session.StakeAmount = "0.5"
	st.Session.Status = room.StatusCreated

	staked := true
	addrs := st.Roster.Addresses()
	for i, a := range addrs {
		if BarrierReached(st) {
			t.Fatalf("barrier fired after %d of %d stakes", i, len(addrs))
		}
		if err := CheckStake(st, a); err != nil {
			t.Fatalf("stake %s: %v", a, err)
		}
		st.Roster.Patch(a, room.PlayerPatch{HasStaked: &staked})
	}
	if !BarrierReached(st) {
		t.Fatal("barrier not reached with every stake in")
	}

	// Already running: the barrier must not fire twice.
	st.Session.Started = true
	if BarrierReached(st) {
		t.Fatal("barrier fired again after start")
	}
}

func TestCheckStakeRejectsDuplicates(t *testing.T) {
	st := newRoom(t, 2, 1)
	st.Session.Status = room.StatusCreated

	if err := CheckStake(st, "0xHost"); err != nil {
		t.Fatalf("first stake: %v", err)
	}
	staked := true
	st.Roster.Patch("0xHost", room.PlayerPatch{HasStaked: &staked})
	if err := CheckStake(st, "0xHost"); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("double stake: %v", err)
	}
	if err := CheckStake(st, "0xBot0"); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("bot stake: %v", err)
	}
}

func TestCheckReportEnd(t *testing.T) {
	st := newRoom(t, 2, 0)

	if err := CheckReportEnd(st, "0xHost"); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("end before start: %v", err)
	}

	st.Session.Started = true
	if err := CheckReportEnd(st, "0xGhost"); !errors.Is(err, ErrUnknownWinner) {
		t.Fatalf("unknown winner: %v", err)
	}
	if err := CheckReportEnd(st, "0xP1"); err != nil {
		t.Fatalf("valid end: %v", err)
	}

	st.Session.Ended = true
	if err := CheckReportEnd(st, "0xP1"); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("double end: %v", err)
	}
}

func TestCheckReset(t *testing.T) {
	st := newRoom(t, 2, 0)
	if err := CheckReset(st); !errors.Is(err, ErrOutOfPhase) {
		t.Fatalf("reset mid-lobby: %v", err)
	}
	st.Session.Started, st.Session.Ended = true, true
	if err := CheckReset(st); err != nil {
		t.Fatalf("reset after end: %v", err)
	}
}

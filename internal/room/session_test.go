package room

import (
	"errors"
	"reflect"
	"testing"
)

func TestAdvanceStatusNeverRegresses(t *testing.T) {
	s := NewGameSession("123456")

	if err := s.AdvanceStatus(StatusCreated); err != nil {
		t.Fatal(err)
	}
	if err := s.AdvanceStatus(StatusCreated); err != nil {
		t.Fatalf("same-status advance must be a no-op, got %v", err)
	}
	if err := s.AdvanceStatus(StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if err := s.AdvanceStatus(StatusCreated); !errors.Is(err, ErrStatusRegression) {
		t.Fatalf("regression allowed: %v", err)
	}
	if s.Status != StatusInProgress {
		t.Fatalf("status moved on failed advance: %v", s.Status)
	}
}

func TestSetWinnerOnce(t *testing.T) {
	s := NewGameSession("123456")

	if err := s.SetWinner("0xA"); !errors.Is(err, ErrRaceNotRunning) {
		t.Fatalf("winner before start: %v", err)
	}

	s.Started = true
	if err := s.SetWinner("0xA"); err != nil {
		t.Fatal(err)
	}
	// Duplicate delivery of the same result is fine.
	if err := s.SetWinner("0xA"); err != nil {
		t.Fatalf("idempotent re-set: %v", err)
	}
	if err := s.SetWinner("0xB"); !errors.Is(err, ErrWinnerAlreadySet) {
		t.Fatalf("conflicting winner: %v", err)
	}
	if s.Winner != "0xA" || !s.Ended {
		t.Fatalf("session after winner: %+v", s)
	}
}

func TestResetMintsFreshSession(t *testing.T) {
	s := NewGameSession("123456")
	s.StakeAmount = "0.5"
	s.Started, s.Ended, s.Winner = true, true, "0xA"
	old := s.GameID

	s.Reset("123456")

	if s.GameID == old {
		t.Fatal("reset kept the old game id")
	}
	if s.StakeAmount != "0.5" {
		t.Fatalf("reset dropped the stake: %q", s.StakeAmount)
	}
	if s.Started || s.Ended || s.Winner != "" || s.Status != StatusNonExistent {
		t.Fatalf("reset left round state: %+v", s)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := NewState("123456", "0xHost")
	if err := st.Roster.Add(PlayerRecord{Address: "0xHost", Ready: true}); err != nil {
		t.Fatal(err)
	}
	if err := st.Roster.Add(PlayerRecord{Address: "0xB", Signature: []byte{9}}); err != nil {
		t.Fatal(err)
	}
	st.Session.StakeAmount = "1.5"

	var replica State
	replica.Restore(st.Snapshot())

	if replica.RoomCode != st.RoomCode || replica.Host != st.Host {
		t.Fatalf("identity lost: %+v", replica)
	}
	if !reflect.DeepEqual(replica.Session, st.Session) {
		t.Fatalf("session diverged: %+v vs %+v", replica.Session, st.Session)
	}
	got := replica.Roster.Players()
	want := st.Roster.Players()
	if len(got) != len(want) {
		t.Fatalf("roster size: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Address != want[i].Address || got[i].Ready != want[i].Ready {
			t.Fatalf("player %d diverged: %+v vs %+v", i, got[i], want[i])
		}
	}
}

package room

import (
	"errors"
	"fmt"
	"testing"
)

func TestRosterAddRejectsDuplicates(t *testing.T) {
	r := NewRoster()
	if err := r.Add(PlayerRecord{Address: "0xA"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := r.Add(PlayerRecord{Address: "0xA"}); !errors.Is(err, ErrDuplicatePlayer) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicatePlayer", err)
	}
}

func TestRosterAddRejectsOverflow(t *testing.T) {
	r := NewRoster()
	for i := 0; i < MaxPlayers; i++ {
		if err := r.Add(PlayerRecord{Address: fmt.Sprintf("0x%02d", i)}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := r.Add(PlayerRecord{Address: "0xFF"}); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("overflow add: got %v, want ErrRoomFull", err)
	}
}

func TestRosterPutIsIdempotent(t *testing.T) {
	r := NewRoster()
	r.Put(PlayerRecord{Address: "0xA", Ready: true})
	r.Put(PlayerRecord{Address: "0xB"})
	r.Put(PlayerRecord{Address: "0xA", Ready: true})

	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	addrs := r.Addresses()
	if addrs[0] != "0xA" || addrs[1] != "0xB" {
		t.Fatalf("join order broken: %v", addrs)
	}
}

func TestHasStakedIsMonotone(t *testing.T) {
	r := NewRoster()
	if err := r.Add(PlayerRecord{Address: "0xA"}); err != nil {
		t.Fatal(err)
	}

	staked := true
	if err := r.Patch("0xA", PlayerPatch{HasStaked: &staked}); err != nil {
		t.Fatal(err)
	}

	// A false patch must not clear the flag; only ResetRound does.
	unstaked := false
	if err := r.Patch("0xA", PlayerPatch{HasStaked: &unstaked}); err != nil {
		t.Fatal(err)
	}
	p, _ := r.Get("0xA")
	if !p.HasStaked {
		t.Fatal("hasStaked cleared by patch; must stay true until reset")
	}

	r.ResetRound()
	p, _ = r.Get("0xA")
	if p.HasStaked || p.Ready || p.Signature != nil {
		t.Fatalf("reset left round state behind: %+v", p)
	}
}

func TestPatchIsIdempotent(t *testing.T) {
	r := NewRoster()
	if err := r.Add(PlayerRecord{Address: "0xA"}); err != nil {
		t.Fatal(err)
	}

	ready := true
	patch := PlayerPatch{Ready: &ready, Signature: []byte{1, 2, 3}}
	for i := 0; i < 3; i++ {
		if err := r.Patch("0xA", patch); err != nil {
			t.Fatal(err)
		}
	}
	p, _ := r.Get("0xA")
	if !p.Ready || len(p.Signature) != 3 {
		t.Fatalf("triple patch diverged: %+v", p)
	}
}

func TestAllHumansIgnoreBots(t *testing.T) {
	r := NewRoster()
	if err := r.Add(PlayerRecord{Address: "0xA", Ready: true, HasStaked: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(PlayerRecord{Address: "0xBot1", Ready: true, IsBot: true}); err != nil {
		t.Fatal(err)
	}

	if !r.AllHumansReady() {
		t.Fatal("bot without ready flag held AllHumansReady")
	}
	if !r.AllHumansStaked() {
		t.Fatal("bot held the staking barrier")
	}
	if len(r.Humans()) != 1 {
		t.Fatalf("humans = %d, want 1", len(r.Humans()))
	}
}

func TestEmptyRosterIsNeverReady(t *testing.T) {
	r := NewRoster()
	if r.AllHumansReady() || r.AllHumansStaked() {
		t.Fatal("empty roster reported ready/staked")
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	r := NewRoster()
	for _, a := range []string{"0xA", "0xB", "0xC"} {
		if err := r.Add(PlayerRecord{Address: a}); err != nil {
			t.Fatal(err)
		}
	}
	if !r.Remove("0xB") {
		t.Fatal("remove reported missing player")
	}
	addrs := r.Addresses()
	if len(addrs) != 2 || addrs[0] != "0xA" || addrs[1] != "0xC" {
		t.Fatalf("order after remove: %v", addrs)
	}
	if r.Remove("0xB") {
		t.Fatal("second remove succeeded")
	}
}

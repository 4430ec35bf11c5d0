package protocol

import (
	"testing"

	"monarcade/internal/room"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ready := true
	raw, err := Encode(TypePlayerUpdate, PlayerUpdate{
		Address: "0xA",
		Patch:   room.PlayerPatch{Ready: &ready},
	})
	if err != nil {
		t.Fatal(err)
	}

	env, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != TypePlayerUpdate {
		t.Fatalf("type = %s", env.Type)
	}

	var upd PlayerUpdate
	if err := env.Unmarshal(&upd); err != nil {
		t.Fatal(err)
	}
	if upd.Address != "0xA" || upd.Patch.Ready == nil || !*upd.Patch.Ready {
		t.Fatalf("payload diverged: %+v", upd)
	}
	if upd.Patch.HasStaked != nil {
		t.Fatal("untouched patch field came back non-nil")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("garbage decoded")
	}
	if _, err := Decode([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("envelope without type decoded")
	}
}

func TestUnmarshalEmptyPayload(t *testing.T) {
	raw, err := Encode(TypeGameCompleted, nil)
	if err != nil {
		t.Fatal(err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	var gc GameCompleted
	if err := env.Unmarshal(&gc); err == nil {
		t.Fatal("empty payload unmarshaled")
	}
}

func TestSnapshotTravels(t *testing.T) {
	st := room.NewState("123456", "0xHost")
	if err := st.Roster.Add(room.PlayerRecord{Address: "0xHost", Color: "#ff00ff"}); err != nil {
		t.Fatal(err)
	}
	st.Session.StakeAmount = "0.25"

	raw, err := Encode(TypeRoomState, RoomState{Snapshot: st.Snapshot()})
	if err != nil {
		t.Fatal(err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	var rs RoomState
	if err := env.Unmarshal(&rs); err != nil {
		t.Fatal(err)
	}

	var replica room.State
	replica.Restore(rs.Snapshot)
	if replica.Host != "0xHost" || replica.Session.StakeAmount != "0.25" {
		t.Fatalf("replica diverged: %+v", replica)
	}
	p, ok := replica.Roster.Get("0xHost")
	if !ok || p.Color != "#ff00ff" {
		t.Fatalf("player diverged: %+v", p)
	}
}

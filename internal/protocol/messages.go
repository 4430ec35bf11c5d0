// Package protocol defines the messages that keep room replicas in sync.
// The host broadcasts deltas; followers send intents that only become
// authoritative once the host echoes them back. Messages are substrate
// agnostic: anything that can carry a byte slice per peer link can carry
// them.
package protocol

import (
	"encoding/json"
	"fmt"

	"monarcade/internal/room"
)

type Type string

const (
	// host → followers
	TypeRoomState      Type = "room_state"
	TypePlayerJoined   Type = "player_joined"
	TypePlayerLeft     Type = "player_left"
	TypePlayerUpdate   Type = "player_update"
	TypeStakeSet       Type = "stake_set"
	TypeGameCreated    Type = "game_created"
	TypeStakeConfirmed Type = "stake_confirmed"
	TypeStartRace      Type = "start_race"
	TypeRaceEnded      Type = "race_ended"
	TypeGameCompleted  Type = "game_completed"
	TypeGameReset      Type = "game_reset"

	// follower → host
	TypeRequestRoomState Type = "request_room_state"
	TypeClientUpdate     Type = "client_update"
	TypeClientStake      Type = "client_stake_confirmed"
	TypeClientSignature  Type = "client_signature"
)

// Envelope is the wire frame: a type tag plus a type-specific payload.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomState carries a full snapshot, sent to a joining or resyncing
// follower.
type RoomState struct {
	Snapshot room.Snapshot `json:"snapshot"`
}

type PlayerJoined struct {
	Player room.PlayerRecord `json:"player"`
}

type PlayerLeft struct {
	Address string `json:"address"`
}

// PlayerUpdate is a field-level patch to one roster entry. Re-applying the
// same patch is a no-op, so duplicate delivery is safe.
type PlayerUpdate struct {
	Address string           `json:"address"`
	Patch   room.PlayerPatch `json:"patch"`
}

type StakeSet struct {
	Amount string `json:"amount"`
}

// GameCreated carries the contract's creation timestamp and the frozen
// wallet list the game was created with; both anchor result signatures.
type GameCreated struct {
	GameID    string   `json:"gameId"`
	CreatedAt int64    `json:"createdAt"`
	Players   []string `json:"players"`
}

type StakeConfirmed struct {
	Address string `json:"address"`
	GameID  string `json:"gameId"`
}

type StartRace struct {
	GameID string `json:"gameId"`
}

// RaceEnded announces the winner so non-winners can sign the result.
type RaceEnded struct {
	GameID string `json:"gameId"`
	Winner string `json:"winner"`
}

// GameCompleted confirms the payout settled on chain.
type GameCompleted struct {
	GameID string `json:"gameId"`
}

// GameReset announces the next round: a fresh session plus cleared
// per-player round flags on every replica.
type GameReset struct {
	Session room.GameSession `json:"session"`
}

// RequestRoomState is how a follower introduces itself (or asks for a
// resync when it suspects drift). The host replies with RoomState.
type RequestRoomState struct {
	Player room.PlayerRecord `json:"player"`
}

type ClientUpdate struct {
	Address string           `json:"address"`
	Patch   room.PlayerPatch `json:"patch"`
}

type ClientStake struct {
	Address string `json:"address"`
	GameID  string `json:"gameId"`
}

type ClientSignature struct {
	Address   string `json:"address"`
	GameID    string `json:"gameId"`
	Signature []byte `json:"signature"`
}

// Encode wraps a payload in an envelope and marshals it.
func Encode(t Type, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Decode parses an envelope from the wire.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Unmarshal extracts the typed payload from an envelope.
func (e Envelope) Unmarshal(into any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, into); err != nil {
		return fmt.Errorf("%s payload: %w", e.Type, err)
	}
	return nil
}

package room

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"regexp"
	"time"

	"golang.org/x/crypto/sha3"
)

var codePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// NewRoomCode draws a 6-digit code. The code doubles as the host's relay
// address, so a collision is detected at claim time, not here.
func NewRoomCode() string {
	return fmt.Sprintf("%06d", 100000+mrand.Intn(900000))
}

// ValidCode reports whether s is a well-formed 6-digit room code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// NewBotAddress mints a fake address for a bot player. Bots never touch
// the chain, so the address only needs to be unique within the room.
func NewBotAddress() string {
	return fmt.Sprintf("0xBot%06d", mrand.Intn(1000000))
}

// NewGameID derives a collision-resistant opaque id for one round from the
// room code, the clock, and a random salt. It does not need to be secret.
func NewGameID(roomCode string, now time.Time) string {
	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		binary.BigEndian.PutUint64(salt[:], mrand.Uint64())
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(roomCode))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano()))
	h.Write(ts[:])
	h.Write(salt[:])

	return "0x" + hex.EncodeToString(h.Sum(nil))
}

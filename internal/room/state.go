package room

// State is the aggregate a peer holds for one room: roster plus session,
// keyed by the shareable code. The host's copy is canonical.
type State struct {
	RoomCode string
	Host     string
	Roster   *Roster
	Session  GameSession
}

// NewState builds room state for a freshly created room.
func NewState(roomCode, hostAddress string) *State {
	return &State{
		RoomCode: roomCode,
		Host:     hostAddress,
		Roster:   NewRoster(),
		Session:  NewGameSession(roomCode),
	}
}

// Snapshot is the wire form of the full room state. It is the anti-entropy
// payload: a follower that applies one converges to the host regardless of
// which deltas it missed.
type Snapshot struct {
	RoomCode string         `json:"roomCode"`
	Host     string         `json:"host"`
	Players  []PlayerRecord `json:"players"`
	Session  GameSession    `json:"session"`
}

// Snapshot captures a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		RoomCode: s.RoomCode,
		Host:     s.Host,
		Players:  s.Roster.Players(),
		Session:  s.Session,
	}
}

// Restore replaces the state with the given snapshot.
func (s *State) Restore(snap Snapshot) {
	s.RoomCode = snap.RoomCode
	s.Host = snap.Host
	s.Session = snap.Session
	if s.Roster == nil {
		s.Roster = NewRoster()
	}
	s.Roster.Restore(snap.Players)
}

package peer

import (
	"context"
	"fmt"
	"time"

	"monarcade/internal/lifecycle"
	"monarcade/internal/logger"
	"monarcade/internal/protocol"
	"monarcade/internal/room"
	"monarcade/internal/staking"
	"monarcade/internal/transport"
)

// Follower holds a replica of a room. Local actions apply optimistically
// and go upstream as intents; whatever the host echoes back is truth, so
// a rejected intent is undone by the host's corrective update.
type Follower struct {
	core
	cfg   Config
	addr  string
	code  string
	st    *room.State
	coord *staking.Coordinator
	link  transport.Link

	staking   bool
	submitIn  bool
	submitted bool
}

// JoinRoom dials the host behind the given room code and replicates its
// state. Connection attempts are retried a bounded number of times; the
// relay only knows the address once the host has claimed it.
func JoinRoom(ctx context.Context, cfg Config, code string) (*Follower, error) {
	cfg = cfg.withDefaults()
	if !room.ValidCode(code) {
		return nil, ErrBadRoomCode
	}
	addr := cfg.Signer.Address()

	var (
		link transport.Link
		err  error
	)
	for i := 0; i < cfg.JoinRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(cfg.JoinRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		link, err = cfg.Transport.Connect(ctx, code)
		if err == nil {
			break
		}
		logger.Debug("join attempt failed", "roomCode", code, "attempt", i+1, "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}

	me := room.PlayerRecord{Address: addr, Color: room.RandomColor()}
	msg, err := protocol.Encode(protocol.TypeRequestRoomState, protocol.RequestRoomState{Player: me})
	if err != nil {
		link.Close()
		return nil, err
	}
	if err := link.Send(msg); err != nil {
		link.Close()
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}

	snap, err := awaitSnapshot(ctx, link)
	if err != nil {
		link.Close()
		return nil, err
	}

	st := &room.State{}
	st.Restore(snap)
	f := &Follower{
		core:  newCore(),
		cfg:   cfg,
		addr:  addr,
		code:  code,
		st:    st,
		coord: staking.New(cfg.Chain, cfg.Signer, cfg.Contract, cfg.ChainID),
		link:  link,
	}
	go f.loop()
	logger.Info("joined room", "roomCode", code, "address", addr)
	return f, nil
}

// awaitSnapshot blocks until the host answers the introduction with a
// full room snapshot. A host that admits us sends it first thing.
func awaitSnapshot(ctx context.Context, link transport.Link) (room.Snapshot, error) {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case data := <-link.Recv():
			env, err := protocol.Decode(data)
			if err != nil {
				continue
			}
			if env.Type != protocol.TypeRoomState {
				continue
			}
			var rs protocol.RoomState
			if err := env.Unmarshal(&rs); err != nil {
				return room.Snapshot{}, err
			}
			return rs.Snapshot, nil
		case <-link.Done():
			return room.Snapshot{}, fmt.Errorf("%w: host refused", ErrJoinFailed)
		case <-timeout:
			return room.Snapshot{}, fmt.Errorf("%w: no snapshot from host", ErrJoinFailed)
		case <-ctx.Done():
			return room.Snapshot{}, ctx.Err()
		}
	}
}

func (f *Follower) Address() string  { return f.addr }
func (f *Follower) RoomCode() string { return f.code }
func (f *Follower) IsHost() bool     { return false }

func (f *Follower) Snapshot() room.Snapshot {
	var snap room.Snapshot
	_ = f.do(func() error {
		snap = f.st.Snapshot()
		return nil
	})
	return snap
}

func (f *Follower) Phase() lifecycle.Phase {
	phase := lifecycle.PhaseLobby
	_ = f.do(func() error {
		phase = lifecycle.PhaseOf(f.st)
		return nil
	})
	return phase
}

func (f *Follower) SetStake(string) error      { return ErrNotHost }
func (f *Follower) AddBot() error              { return ErrNotHost }
func (f *Follower) StartRace() error           { return ErrNotHost }
func (f *Follower) ReportRaceEnd(string) error { return ErrNotHost }
func (f *Follower) ResetGame() error           { return ErrNotHost }

// ToggleReady applies the flag optimistically and tells the host. If the
// host rejects it, its corrective update puts the replica back.
func (f *Follower) ToggleReady(ready bool) error {
	return f.do(func() error {
		if err := lifecycle.CheckReady(f.st, f.addr, ready); err != nil {
			return err
		}
		_ = f.st.Roster.Patch(f.addr, room.PlayerPatch{Ready: &ready})
		f.send(protocol.TypeClientUpdate, protocol.ClientUpdate{
			Address: f.addr,
			Patch:   room.PlayerPatch{Ready: &ready},
		})
		f.emit(EventRoomUpdated, "ready toggled")
		f.maybeStakeSelf()
		return nil
	})
}

// Resync asks the host for a fresh snapshot. Applying it converges the
// replica no matter which deltas were missed.
func (f *Follower) Resync() error {
	return f.do(func() error {
		me, _ := f.st.Roster.Get(f.addr)
		if me.Address == "" {
			me = room.PlayerRecord{Address: f.addr}
		}
		f.send(protocol.TypeRequestRoomState, protocol.RequestRoomState{Player: me})
		return nil
	})
}

func (f *Follower) Leave() error {
	f.link.Close()
	f.close()
	return nil
}

func (f *Follower) loop() {
	for {
		select {
		case data := <-f.link.Recv():
			f.handle(data)
		case <-f.link.Done():
			// Host gone: the room is over for us, back to unjoined.
			f.emit(EventRoomClosed, "lost connection to host")
			logger.Info("room connection lost", "roomCode", f.st.RoomCode, "address", f.addr)
			f.close()
			return
		case cmd := <-f.cmds:
			cmd.reply <- cmd.fn()
		case fn := <-f.tasks:
			fn()
		case <-f.done:
			f.link.Close()
			return
		}
	}
}

func (f *Follower) handle(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		logger.Warn("undecodable frame dropped", "roomCode", f.st.RoomCode, "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeRoomState:
		var rs protocol.RoomState
		if env.Unmarshal(&rs) == nil {
			f.st.Restore(rs.Snapshot)
			f.emit(EventRoomUpdated, "state resynced")
		}
	case protocol.TypePlayerJoined:
		var pj protocol.PlayerJoined
		if env.Unmarshal(&pj) == nil {
			f.st.Roster.Put(pj.Player)
			f.emit(EventRoomUpdated, "player joined: "+pj.Player.Address)
		}
	case protocol.TypePlayerLeft:
		var pl protocol.PlayerLeft
		if env.Unmarshal(&pl) == nil {
			f.st.Roster.Remove(pl.Address)
			f.emit(EventRoomUpdated, "player left: "+pl.Address)
		}
	case protocol.TypePlayerUpdate:
		var pu protocol.PlayerUpdate
		if env.Unmarshal(&pu) == nil {
			_ = f.st.Roster.Patch(pu.Address, pu.Patch)
			f.emit(EventRoomUpdated, "player updated: "+pu.Address)
			f.maybeSubmit()
		}
	case protocol.TypeStakeSet:
		var ss protocol.StakeSet
		if env.Unmarshal(&ss) == nil {
			f.st.Session.StakeAmount = ss.Amount
			f.emit(EventRoomUpdated, "stake set to "+ss.Amount)
		}
	case protocol.TypeGameCreated:
		var gc protocol.GameCreated
		if env.Unmarshal(&gc) == nil {
			f.applyGameCreated(gc)
		}
	case protocol.TypeStakeConfirmed:
		var sc protocol.StakeConfirmed
		if env.Unmarshal(&sc) == nil && sc.GameID == f.st.Session.GameID {
			staked := true
			_ = f.st.Roster.Patch(sc.Address, room.PlayerPatch{HasStaked: &staked})
			f.emit(EventRoomUpdated, "stake confirmed: "+sc.Address)
		}
	case protocol.TypeStartRace:
		var sr protocol.StartRace
		if env.Unmarshal(&sr) == nil && sr.GameID == f.st.Session.GameID {
			f.st.Session.Started = true
			if f.st.Session.Status != room.StatusNonExistent {
				_ = f.st.Session.AdvanceStatus(room.StatusInProgress)
			}
			f.emit(EventRaceStarted, "race started")
		}
	case protocol.TypeRaceEnded:
		var re protocol.RaceEnded
		if env.Unmarshal(&re) == nil && re.GameID == f.st.Session.GameID {
			f.applyRaceEnded(re)
		}
	case protocol.TypeGameCompleted:
		var gc protocol.GameCompleted
		if env.Unmarshal(&gc) == nil && gc.GameID == f.st.Session.GameID {
			_ = f.st.Session.AdvanceStatus(room.StatusCompleted)
			f.emit(EventGameCompleted, "payout settled")
		}
	case protocol.TypeGameReset:
		var gr protocol.GameReset
		if env.Unmarshal(&gr) == nil {
			f.st.Session = gr.Session
			f.st.Roster.ResetRound()
			f.staking, f.submitIn, f.submitted = false, false, false
			f.emit(EventRoomUpdated, "room reset for next round")
		}
	default:
		logger.Warn("unexpected message dropped", "roomCode", f.st.RoomCode, "type", env.Type)
	}
}

func (f *Follower) applyGameCreated(gc protocol.GameCreated) {
	if gc.GameID != f.st.Session.GameID {
		// The host minted a session we never saw; resync instead of guessing.
		me, _ := f.st.Roster.Get(f.addr)
		f.send(protocol.TypeRequestRoomState, protocol.RequestRoomState{Player: me})
		return
	}
	f.st.Session.CreatedAt = gc.CreatedAt
	f.st.Session.ChainPlayers = gc.Players
	_ = f.st.Session.AdvanceStatus(room.StatusCreated)
	f.emit(EventRoomUpdated, "game created on chain")
	f.maybeStakeSelf()
}

func (f *Follower) applyRaceEnded(re protocol.RaceEnded) {
	if err := f.st.Session.SetWinner(re.Winner); err != nil {
		logger.Warn("race end rejected by replica", "roomCode", f.st.RoomCode, "error", err)
		return
	}
	f.emit(EventRaceEnded, "winner: "+re.Winner)

	s := f.st.Session
	if s.Status == room.StatusNonExistent {
		return
	}
	if f.addr == s.Winner {
		f.maybeSubmit()
		return
	}

	sig, err := f.coord.SignResult(s)
	if err != nil {
		logger.Error("sign result failed", "roomCode", f.st.RoomCode, "error", err)
		f.emit(EventError, "could not sign result: "+err.Error())
		return
	}
	_ = f.st.Roster.Patch(f.addr, room.PlayerPatch{Signature: sig})
	f.send(protocol.TypeClientSignature, protocol.ClientSignature{
		Address:   f.addr,
		GameID:    s.GameID,
		Signature: sig,
	})
}

// maybeStakeSelf sends this wallet's stake once the game exists on chain
// and the player is ready. Success goes upstream as an intent; the flag
// only counts once the host confirms it.
func (f *Follower) maybeStakeSelf() {
	if f.staking {
		return
	}
	if lifecycle.CheckStake(f.st, f.addr) != nil {
		return
	}
	self, _ := f.st.Roster.Get(f.addr)
	if !self.Ready {
		return
	}

	f.staking = true
	gameID := f.st.Session.GameID
	stake := f.st.Session.StakeAmount

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.CallTimeout)
		defer cancel()
		err := f.coord.Stake(ctx, gameID, stake)
		f.post(func() { f.stakeDone(gameID, err) })
	}()
}

func (f *Follower) stakeDone(gameID string, err error) {
	f.staking = false
	if gameID != f.st.Session.GameID {
		return
	}
	if err != nil {
		logger.Error("stake failed", "roomCode", f.st.RoomCode, "gameId", gameID, "error", err)
		// Undo the optimistic ready and tell the host we backed out.
		ready := false
		_ = f.st.Roster.Patch(f.addr, room.PlayerPatch{Ready: &ready})
		f.send(protocol.TypeClientUpdate, protocol.ClientUpdate{
			Address: f.addr,
			Patch:   room.PlayerPatch{Ready: &ready},
		})
		f.emit(EventError, "stake failed: "+err.Error())
		return
	}

	staked := true
	_ = f.st.Roster.Patch(f.addr, room.PlayerPatch{HasStaked: &staked})
	f.send(protocol.TypeClientStake, protocol.ClientStake{Address: f.addr, GameID: gameID})
	f.emit(EventRoomUpdated, "stake sent")
}

// maybeSubmit runs when this follower won: once the replica holds every
// expected signature, claim the payout. The host notices completion by
// polling the contract.
func (f *Follower) maybeSubmit() {
	s := f.st.Session
	if f.addr != s.Winner || !s.Ended || f.submitted || f.submitIn {
		return
	}
	if s.Status == room.StatusNonExistent || s.Status == room.StatusCompleted {
		return
	}
	if !staking.ReadyToSubmit(f.st, s.Winner) {
		return
	}

	f.submitIn = true
	gameID := s.GameID
	var snap room.State
	snap.Restore(f.st.Snapshot())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.CallTimeout)
		defer cancel()
		err := f.coord.SubmitResult(ctx, &snap)
		f.post(func() { f.submitDone(gameID, err) })
	}()
}

func (f *Follower) submitDone(gameID string, err error) {
	f.submitIn = false
	if gameID != f.st.Session.GameID {
		return
	}
	if err != nil {
		logger.Error("submit result failed", "roomCode", f.st.RoomCode, "gameId", gameID, "error", err)
		f.emit(EventError, "could not submit result: "+err.Error())
		return
	}
	f.submitted = true
	_ = f.st.Session.AdvanceStatus(room.StatusCompleted)
	f.emit(EventGameCompleted, "payout claimed")
	logger.Info("result submitted", "roomCode", f.st.RoomCode, "gameId", gameID)
}

func (f *Follower) send(t protocol.Type, payload any) {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		logger.Error("encode send failed", "type", t, "error", err)
		return
	}
	if err := f.link.Send(msg); err != nil {
		logger.Debug("send to host failed", "roomCode", f.st.RoomCode, "error", err)
	}
}

package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monarcade/internal/chain"
	"monarcade/internal/lifecycle"
	"monarcade/internal/logger"
	"monarcade/internal/protocol"
	"monarcade/internal/room"
	"monarcade/internal/staking"
	"monarcade/internal/transport"
)

// Host owns the canonical room state. Every mutation, whether it starts
// as a local action or a follower intent, is applied here first and then
// broadcast; followers never become authoritative on their own.
type Host struct {
	core
	cfg   Config
	addr  string
	code  string
	st    *room.State
	coord *staking.Coordinator
	ln    transport.Listener

	followers map[string]transport.Link // wallet → link
	linkAddrs map[transport.Link]string
	inbox     chan hostPacket

	creating  bool
	staking   bool
	submitIn  bool
	submitted bool
	polling   bool
}

type hostPacket struct {
	link   transport.Link
	data   []byte
	closed bool
}

// CreateRoom claims a fresh room code on the transport and starts hosting.
// Code collisions surface as ErrAddressTaken at claim time; a few redraws
// make them a non-event.
func CreateRoom(ctx context.Context, cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()
	addr := cfg.Signer.Address()

	var (
		ln   transport.Listener
		code string
	)
	for i := 0; i < cfg.CodeAttempts; i++ {
		code = room.NewRoomCode()
		l, err := cfg.Transport.Listen(ctx, code)
		if err == nil {
			ln = l
			break
		}
		if !errors.Is(err, transport.ErrAddressTaken) {
			return nil, fmt.Errorf("peer: claim room code: %w", err)
		}
	}
	if ln == nil {
		return nil, ErrCodeUnavailable
	}

	st := room.NewState(code, addr)
	if err := st.Roster.Add(room.PlayerRecord{Address: addr, Color: room.RandomColor()}); err != nil {
		ln.Close()
		return nil, err
	}

	h := &Host{
		core:      newCore(),
		cfg:       cfg,
		addr:      addr,
		code:      code,
		st:        st,
		coord:     staking.New(cfg.Chain, cfg.Signer, cfg.Contract, cfg.ChainID),
		ln:        ln,
		followers: make(map[string]transport.Link),
		linkAddrs: make(map[transport.Link]string),
		inbox:     make(chan hostPacket, 64),
	}
	go h.loop()
	logger.Info("room created", "roomCode", code, "host", addr)
	return h, nil
}

func (h *Host) Address() string  { return h.addr }
func (h *Host) RoomCode() string { return h.code }
func (h *Host) IsHost() bool     { return true }

func (h *Host) Snapshot() room.Snapshot {
	var snap room.Snapshot
	_ = h.do(func() error {
		snap = h.st.Snapshot()
		return nil
	})
	return snap
}

func (h *Host) Phase() lifecycle.Phase {
	phase := lifecycle.PhaseLobby
	_ = h.do(func() error {
		phase = lifecycle.PhaseOf(h.st)
		return nil
	})
	return phase
}

// SetStake changes the per-player stake before the game exists on chain.
func (h *Host) SetStake(amount string) error {
	return h.do(func() error {
		if err := lifecycle.CheckSetStake(h.st, amount); err != nil {
			return err
		}
		h.st.Session.StakeAmount = amount
		h.broadcast(protocol.TypeStakeSet, protocol.StakeSet{Amount: amount})
		h.emit(EventRoomUpdated, "stake set to "+amount)
		return nil
	})
}

func (h *Host) ToggleReady(ready bool) error {
	return h.do(func() error {
		if err := lifecycle.CheckReady(h.st, h.addr, ready); err != nil {
			return err
		}
		h.applyPatch(h.addr, room.PlayerPatch{Ready: &ready})
		h.maybeCreateGame()
		h.maybeStakeSelf()
		return nil
	})
}

// AddBot seats a pre-staked bot. Bots never touch the chain, so they are
// born ready and never hold the staking barrier.
func (h *Host) AddBot() error {
	return h.do(func() error {
		if h.st.Session.Started {
			return lifecycle.ErrOutOfPhase
		}
		bot := room.PlayerRecord{
			Address: room.NewBotAddress(),
			Color:   room.RandomColor(),
			Ready:   true,
			IsBot:   true,
		}
		if err := h.st.Roster.Add(bot); err != nil {
			return err
		}
		h.broadcast(protocol.TypePlayerJoined, protocol.PlayerJoined{Player: bot})
		h.emit(EventRoomUpdated, "bot added: "+bot.Address)
		return nil
	})
}

// StartRace launches the bot test mode: a lone human racing bots with no
// chain involvement. Staked races start themselves at the barrier instead.
func (h *Host) StartRace() error {
	return h.do(func() error {
		if !lifecycle.BotTestEligible(h.st) {
			return lifecycle.ErrOutOfPhase
		}
		h.st.Session.Started = true
		h.broadcast(protocol.TypeStartRace, protocol.StartRace{GameID: h.st.Session.GameID})
		h.emit(EventRaceStarted, "bot test race started")
		return nil
	})
}

// ReportRaceEnd records the winner and kicks off settlement: non-winners
// sign the result, the winner submits once every signature is in.
func (h *Host) ReportRaceEnd(winner string) error {
	return h.do(func() error {
		if err := lifecycle.CheckReportEnd(h.st, winner); err != nil {
			return err
		}
		if err := h.st.Session.SetWinner(winner); err != nil {
			return err
		}
		h.broadcast(protocol.TypeRaceEnded, protocol.RaceEnded{
			GameID: h.st.Session.GameID,
			Winner: winner,
		})
		h.emit(EventRaceEnded, "winner: "+winner)
		h.afterRaceEnd()
		return nil
	})
}

func (h *Host) ResetGame() error {
	return h.do(func() error {
		if err := lifecycle.CheckReset(h.st); err != nil {
			return err
		}
		h.st.Session.Reset(h.code)
		h.st.Roster.ResetRound()
		h.creating, h.staking, h.submitIn, h.submitted, h.polling = false, false, false, false, false
		h.broadcast(protocol.TypeGameReset, protocol.GameReset{Session: h.st.Session})
		h.emit(EventRoomUpdated, "room reset for next round")
		return nil
	})
}

// Leave shuts the room down. Followers see their link die and fall back
// to the unjoined state.
func (h *Host) Leave() error {
	h.close()
	return nil
}

func (h *Host) loop() {
	for {
		select {
		case link, ok := <-h.ln.Accept():
			if ok {
				go h.pump(link)
			}
		case p := <-h.inbox:
			if p.closed {
				h.dropLink(p.link)
			} else {
				h.handle(p.link, p.data)
			}
		case cmd := <-h.cmds:
			cmd.reply <- cmd.fn()
		case fn := <-h.tasks:
			fn()
		case <-h.done:
			h.shutdown()
			return
		}
	}
}

// pump moves one link's traffic into the loop's inbox so the loop stays
// the only goroutine touching state.
func (h *Host) pump(link transport.Link) {
	for {
		select {
		case data := <-link.Recv():
			select {
			case h.inbox <- hostPacket{link: link, data: data}:
			case <-h.done:
				return
			}
		case <-link.Done():
			select {
			case h.inbox <- hostPacket{link: link, closed: true}:
			case <-h.done:
			}
			return
		}
	}
}

func (h *Host) shutdown() {
	for _, link := range h.followers {
		link.Close()
	}
	h.ln.Close()
	logger.Info("room closed", "roomCode", h.code)
}

func (h *Host) dropLink(link transport.Link) {
	wallet, ok := h.linkAddrs[link]
	if !ok {
		return
	}
	delete(h.linkAddrs, link)
	if h.followers[wallet] != link {
		// The wallet reconnected on a newer link; this is the stale one.
		return
	}
	delete(h.followers, wallet)
	h.st.Roster.Remove(wallet)
	h.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeft{Address: wallet})
	h.emit(EventRoomUpdated, "player left: "+wallet)
	logger.Info("player left", "roomCode", h.code, "address", wallet)

	if h.st.Session.Ended && !h.submitted {
		// N-of-N signing: a departed signer stalls the payout until reset.
		logger.Warn("signer left before settlement", "roomCode", h.code, "address", wallet)
	}
	// A departure can complete any roster-derived condition: the departed
	// player may have been the last one holding up creation or the barrier.
	h.maybeCreateGame()
	h.maybeStartRace()
	h.maybeSubmit()
}

func (h *Host) handle(link transport.Link, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		logger.Warn("undecodable frame dropped", "roomCode", h.code, "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeRequestRoomState:
		var req protocol.RequestRoomState
		if env.Unmarshal(&req) == nil {
			h.handleJoin(link, req)
		}
	case protocol.TypeClientUpdate:
		var upd protocol.ClientUpdate
		if env.Unmarshal(&upd) == nil {
			h.handleClientUpdate(link, upd)
		}
	case protocol.TypeClientStake:
		var cs protocol.ClientStake
		if env.Unmarshal(&cs) == nil {
			h.handleClientStake(link, cs)
		}
	case protocol.TypeClientSignature:
		var sig protocol.ClientSignature
		if env.Unmarshal(&sig) == nil {
			h.handleClientSignature(link, sig)
		}
	default:
		logger.Warn("unexpected message dropped", "roomCode", h.code, "type", env.Type)
	}
}

func (h *Host) handleJoin(link transport.Link, req protocol.RequestRoomState) {
	p := req.Player
	if p.Address == "" {
		logger.Warn("join without address dropped", "roomCode", h.code)
		link.Close()
		return
	}

	if _, known := h.st.Roster.Get(p.Address); known {
		// Resync or reconnect: adopt the link and send a fresh snapshot.
		h.followers[p.Address] = link
		h.linkAddrs[link] = p.Address
		h.sendTo(link, protocol.TypeRoomState, protocol.RoomState{Snapshot: h.st.Snapshot()})
		return
	}

	if h.st.Session.Started {
		logger.Info("join refused mid-race", "roomCode", h.code, "address", p.Address)
		link.Close()
		return
	}

	// The host owns round flags; a joiner only brings identity.
	rec := room.PlayerRecord{Address: p.Address, Color: p.Color}
	if rec.Color == "" {
		rec.Color = room.RandomColor()
	}
	if err := h.st.Roster.Add(rec); err != nil {
		logger.Info("join refused", "roomCode", h.code, "address", p.Address, "error", err)
		link.Close()
		return
	}

	h.followers[p.Address] = link
	h.linkAddrs[link] = p.Address
	h.sendTo(link, protocol.TypeRoomState, protocol.RoomState{Snapshot: h.st.Snapshot()})
	h.broadcastExcept(p.Address, protocol.TypePlayerJoined, protocol.PlayerJoined{Player: rec})
	h.emit(EventRoomUpdated, "player joined: "+p.Address)
	logger.Info("player joined", "roomCode", h.code, "address", p.Address)
}

func (h *Host) handleClientUpdate(link transport.Link, upd protocol.ClientUpdate) {
	wallet, ok := h.sender(link)
	if !ok || upd.Address != wallet {
		logger.Warn("update for foreign player dropped", "roomCode", h.code, "claimed", upd.Address)
		return
	}

	if upd.Patch.Ready != nil {
		if err := lifecycle.CheckReady(h.st, wallet, *upd.Patch.Ready); err != nil {
			logger.Info("ready toggle rejected", "roomCode", h.code, "address", wallet, "error", err)
			h.sendCorrection(link)
			return
		}
	}
	// Followers may only move their own ready flag and color this way;
	// stake and signature state travel on their dedicated intents.
	patch := room.PlayerPatch{Ready: upd.Patch.Ready, Color: upd.Patch.Color}
	h.applyPatch(wallet, patch)
	h.maybeCreateGame()
}

func (h *Host) handleClientStake(link transport.Link, cs protocol.ClientStake) {
	wallet, ok := h.sender(link)
	if !ok || cs.Address != wallet {
		logger.Warn("stake claim for foreign player dropped", "roomCode", h.code, "claimed", cs.Address)
		return
	}
	if cs.GameID != h.st.Session.GameID {
		logger.Info("stale stake claim dropped", "roomCode", h.code, "gameId", cs.GameID)
		return
	}
	if p, ok := h.st.Roster.Get(wallet); ok && p.HasStaked {
		return // duplicate delivery
	}
	if err := lifecycle.CheckStake(h.st, wallet); err != nil {
		logger.Warn("stake claim rejected", "roomCode", h.code, "address", wallet, "error", err)
		h.sendCorrection(link)
		return
	}

	h.confirmStake(wallet)
}

func (h *Host) handleClientSignature(link transport.Link, cs protocol.ClientSignature) {
	wallet, ok := h.sender(link)
	if !ok || cs.Address != wallet {
		logger.Warn("signature for foreign player dropped", "roomCode", h.code, "claimed", cs.Address)
		return
	}
	s := h.st.Session
	if !s.Ended || cs.GameID != s.GameID || wallet == s.Winner {
		logger.Info("out-of-phase signature dropped", "roomCode", h.code, "address", wallet)
		return
	}
	if err := h.coord.VerifySignature(s, wallet, cs.Signature); err != nil {
		logger.Warn("bad result signature dropped", "roomCode", h.code, "address", wallet, "error", err)
		return
	}

	h.applyPatch(wallet, room.PlayerPatch{Signature: cs.Signature})
	h.maybeSubmit()
}

// sender resolves the wallet a link was introduced as. Frames from links
// that never joined are protocol violations.
func (h *Host) sender(link transport.Link) (string, bool) {
	wallet, ok := h.linkAddrs[link]
	return wallet, ok
}

// applyPatch mutates one roster entry and echoes the patch to everyone.
// The echo is the authoritative confirmation followers wait for.
func (h *Host) applyPatch(address string, patch room.PlayerPatch) {
	if err := h.st.Roster.Patch(address, patch); err != nil {
		return
	}
	h.broadcast(protocol.TypePlayerUpdate, protocol.PlayerUpdate{Address: address, Patch: patch})
	h.emit(EventRoomUpdated, "player updated: "+address)
}

// sendCorrection overwrites a follower's optimistic state after a
// rejected intent. A full snapshot rather than a field patch: patches
// cannot clear an optimistic HasStaked (it only moves false→true), a
// snapshot restore can.
func (h *Host) sendCorrection(link transport.Link) {
	h.sendTo(link, protocol.TypeRoomState, protocol.RoomState{Snapshot: h.st.Snapshot()})
}

// maybeCreateGame fires the on-chain create once every human is ready.
func (h *Host) maybeCreateGame() {
	if h.creating {
		return
	}
	if !h.st.Roster.AllHumansReady() {
		return
	}
	if err := lifecycle.CheckCreateGame(h.st); err != nil {
		return
	}

	h.creating = true
	gameID := h.st.Session.GameID
	// Only wallets go on chain; bots exist purely in the lobby.
	var players []string
	for _, p := range h.st.Roster.Humans() {
		players = append(players, p.Address)
	}
	stake := h.st.Session.StakeAmount
	logger.Info("creating game on chain", "roomCode", h.code, "gameId", gameID, "players", len(players))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CallTimeout)
		defer cancel()
		createdAt, err := h.coord.CreateGame(ctx, gameID, players, stake)
		h.post(func() { h.createDone(gameID, players, createdAt, err) })
	}()
}

func (h *Host) createDone(gameID string, players []string, createdAt int64, err error) {
	h.creating = false
	if gameID != h.st.Session.GameID {
		return // a reset raced the call; the result belongs to a dead session
	}
	if err != nil {
		logger.Error("create game failed", "roomCode", h.code, "gameId", gameID, "error", err)
		// Roll back the optimistic ready that triggered the call.
		ready := false
		h.applyPatch(h.addr, room.PlayerPatch{Ready: &ready})
		h.emit(EventError, "could not create game on chain: "+err.Error())
		return
	}

	h.st.Session.CreatedAt = createdAt
	h.st.Session.ChainPlayers = players
	_ = h.st.Session.AdvanceStatus(room.StatusCreated)
	h.broadcast(protocol.TypeGameCreated, protocol.GameCreated{
		GameID:    gameID,
		CreatedAt: createdAt,
		Players:   players,
	})
	h.emit(EventRoomUpdated, "game created on chain")
	h.maybeStakeSelf()
}

// maybeStakeSelf sends the host's own stake once the game exists and the
// host is ready. Followers do the same on their side when game_created
// arrives.
func (h *Host) maybeStakeSelf() {
	if h.staking {
		return
	}
	if lifecycle.CheckStake(h.st, h.addr) != nil {
		return
	}
	self, _ := h.st.Roster.Get(h.addr)
	if !self.Ready {
		return
	}

	h.staking = true
	gameID := h.st.Session.GameID
	stake := h.st.Session.StakeAmount

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CallTimeout)
		defer cancel()
		err := h.coord.Stake(ctx, gameID, stake)
		h.post(func() { h.stakeDone(gameID, err) })
	}()
}

func (h *Host) stakeDone(gameID string, err error) {
	h.staking = false
	if gameID != h.st.Session.GameID {
		return
	}
	if err != nil {
		logger.Error("stake failed", "roomCode", h.code, "gameId", gameID, "error", err)
		ready := false
		h.applyPatch(h.addr, room.PlayerPatch{Ready: &ready})
		h.emit(EventError, "stake failed: "+err.Error())
		return
	}
	h.confirmStake(h.addr)
}

// confirmStake marks a player staked and re-checks the barrier. Checking
// the full roster on every confirmation keeps out-of-order arrivals from
// starting the race early.
func (h *Host) confirmStake(address string) {
	staked := true
	if err := h.st.Roster.Patch(address, room.PlayerPatch{HasStaked: &staked}); err != nil {
		return
	}
	h.broadcast(protocol.TypeStakeConfirmed, protocol.StakeConfirmed{
		Address: address,
		GameID:  h.st.Session.GameID,
	})
	h.emit(EventRoomUpdated, "stake confirmed: "+address)
	logger.Info("stake confirmed", "roomCode", h.code, "address", address)
	h.maybeStartRace()
}

func (h *Host) maybeStartRace() {
	if !lifecycle.BarrierReached(h.st) {
		return
	}
	h.st.Session.Started = true
	_ = h.st.Session.AdvanceStatus(room.StatusInProgress)
	h.broadcast(protocol.TypeStartRace, protocol.StartRace{GameID: h.st.Session.GameID})
	h.emit(EventRaceStarted, "all stakes in, race started")
	logger.Info("race started", "roomCode", h.code, "gameId", h.st.Session.GameID)
}

// afterRaceEnd runs the host's part of settlement. Bot test races carry
// no chain game, so there is nothing to sign or submit.
func (h *Host) afterRaceEnd() {
	s := h.st.Session
	if s.Status == room.StatusNonExistent {
		return
	}

	if h.addr != s.Winner {
		sig, err := h.coord.SignResult(s)
		if err != nil {
			logger.Error("sign result failed", "roomCode", h.code, "error", err)
			h.emit(EventError, "could not sign result: "+err.Error())
		} else {
			h.applyPatch(h.addr, room.PlayerPatch{Signature: sig})
		}
		h.pollCompletion(s.GameID)
		return
	}
	h.maybeSubmit()
}

// maybeSubmit sends the winner's payout claim once every expected
// signature has been collected.
func (h *Host) maybeSubmit() {
	s := h.st.Session
	if h.addr != s.Winner || h.submitted || h.submitIn {
		return
	}
	if s.Status == room.StatusNonExistent {
		return
	}
	if !staking.ReadyToSubmit(h.st, s.Winner) {
		return
	}

	h.submitIn = true
	gameID := s.GameID
	var snap room.State
	snap.Restore(h.st.Snapshot())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CallTimeout)
		defer cancel()
		err := h.coord.SubmitResult(ctx, &snap)
		h.post(func() { h.submitDone(gameID, err) })
	}()
}

func (h *Host) submitDone(gameID string, err error) {
	h.submitIn = false
	if gameID != h.st.Session.GameID {
		return
	}
	if err != nil {
		logger.Error("submit result failed", "roomCode", h.code, "gameId", gameID, "error", err)
		h.emit(EventError, "could not submit result: "+err.Error())
		return
	}
	h.submitted = true
	h.settleCompleted(gameID)
}

// pollCompletion watches the contract for the winner's submission when the
// winner is a follower; the poll is bounded so a stalled payout cannot
// leak a goroutine forever.
func (h *Host) pollCompletion(gameID string) {
	if h.polling {
		return
	}
	h.polling = true

	go func() {
		const maxPolls = 40
		for i := 0; i < maxPolls; i++ {
			select {
			case <-time.After(h.cfg.PollInterval):
			case <-h.done:
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CallTimeout)
			status, err := h.coord.GameStatus(ctx, gameID)
			cancel()
			if err != nil {
				logger.Debug("status poll failed", "roomCode", h.code, "error", err)
				continue
			}
			if status == chain.GameCompleted {
				h.post(func() {
					if gameID == h.st.Session.GameID {
						h.settleCompleted(gameID)
					}
				})
				return
			}
		}
		logger.Warn("gave up polling for completion", "roomCode", h.code, "gameId", gameID)
	}()
}

func (h *Host) settleCompleted(gameID string) {
	if h.st.Session.Status == room.StatusCompleted {
		return
	}
	_ = h.st.Session.AdvanceStatus(room.StatusCompleted)
	h.broadcast(protocol.TypeGameCompleted, protocol.GameCompleted{GameID: gameID})
	h.emit(EventGameCompleted, "payout settled")
	logger.Info("game completed", "roomCode", h.code, "gameId", gameID)
}

func (h *Host) broadcast(t protocol.Type, payload any) {
	h.broadcastExcept("", t, payload)
}

func (h *Host) broadcastExcept(skip string, t protocol.Type, payload any) {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		logger.Error("encode broadcast failed", "type", t, "error", err)
		return
	}
	for wallet, link := range h.followers {
		if wallet == skip {
			continue
		}
		if err := link.Send(msg); err != nil {
			logger.Debug("broadcast send failed", "roomCode", h.code, "to", wallet, "error", err)
		}
	}
}

func (h *Host) sendTo(link transport.Link, t protocol.Type, payload any) {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		logger.Error("encode send failed", "type", t, "error", err)
		return
	}
	if err := link.Send(msg); err != nil {
		logger.Debug("send failed", "roomCode", h.code, "error", err)
	}
}

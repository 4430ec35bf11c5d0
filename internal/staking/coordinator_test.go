package staking

import (
	"context"
	"errors"
	"testing"

	"monarcade/internal/chain"
	"monarcade/internal/room"
)

const (
	testContract = "0xcontract"
	testChainID  = int64(10143)
)

func testCoordinator(t *testing.T, mem *chain.Memory) (*Coordinator, *chain.LocalSigner) {
	t.Helper()
	signer, err := chain.NewLocalSigner()
	if err != nil {
		t.Fatal(err)
	}
	return New(mem.For(signer.Address()), signer, testContract, testChainID), signer
}

func TestCreateGameValidation(t *testing.T) {
	coord, signer := testCoordinator(t, chain.NewMemory())
	ctx := context.Background()

	if _, err := coord.CreateGame(ctx, "0xg", []string{signer.Address()}, "0.5"); !errors.Is(err, ErrPlayerCount) {
		t.Fatalf("one player: %v", err)
	}
	players := []string{signer.Address(), "0xB"}
	if _, err := coord.CreateGame(ctx, "0xg", players, "0"); !errors.Is(err, ErrZeroStake) {
		t.Fatalf("zero stake: %v", err)
	}
	if _, err := coord.CreateGame(ctx, "0xg", players, "junk"); !errors.Is(err, chain.ErrBadAmount) {
		t.Fatalf("junk stake: %v", err)
	}

	ts, err := coord.CreateGame(ctx, "0xg", players, "0.5")
	if err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if ts == 0 {
		t.Fatal("creation timestamp missing")
	}
}

func signerState(t *testing.T, players ...room.PlayerRecord) *room.State {
	t.Helper()
	st := room.NewState("123456", players[0].Address)
	for _, p := range players {
		if err := st.Roster.Add(p); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestExpectedSigners(t *testing.T) {
	st := signerState(t,
		room.PlayerRecord{Address: "0xA"},
		room.PlayerRecord{Address: "0xB"},
		room.PlayerRecord{Address: "0xBot", IsBot: true},
		room.PlayerRecord{Address: "0xC"},
	)
	st.Session.ChainPlayers = []string{"0xA", "0xB", "0xC"}

	signers := ExpectedSigners(st, "0xB")
	if len(signers) != 2 || signers[0] != "0xA" || signers[1] != "0xC" {
		t.Fatalf("expected signers: %v", signers)
	}

	// Winner racing only bots owes nobody a signature.
	solo := signerState(t,
		room.PlayerRecord{Address: "0xA"},
		room.PlayerRecord{Address: "0xBot", IsBot: true},
	)
	if got := ExpectedSigners(solo, "0xA"); len(got) != 0 {
		t.Fatalf("solo winner signers: %v", got)
	}
	if !ReadyToSubmit(solo, "0xA") {
		t.Fatal("zero-opponent game not ready to submit")
	}
}

func TestReadyToSubmitNeedsEverySignature(t *testing.T) {
	st := signerState(t,
		room.PlayerRecord{Address: "0xA"},
		room.PlayerRecord{Address: "0xB"},
		room.PlayerRecord{Address: "0xC"},
	)
	st.Session.ChainPlayers = []string{"0xA", "0xB", "0xC"}

	if ReadyToSubmit(st, "0xA") {
		t.Fatal("ready with no signatures")
	}
	st.Roster.Patch("0xB", room.PlayerPatch{Signature: []byte{1}})
	if ReadyToSubmit(st, "0xA") {
		t.Fatal("ready with one of two signatures")
	}
	st.Roster.Patch("0xC", room.PlayerPatch{Signature: []byte{2}})
	if !ReadyToSubmit(st, "0xA") {
		t.Fatal("not ready with every signature in")
	}

	sigs := CollectedSignatures(st, "0xA")
	if len(sigs) != 2 || sigs[0][0] != 1 || sigs[1][0] != 2 {
		t.Fatalf("signatures out of creation order: %v", sigs)
	}
}

func TestDepartedSignerStillCounted(t *testing.T) {
	st := signerState(t,
		room.PlayerRecord{Address: "0xA"},
		room.PlayerRecord{Address: "0xB"},
		room.PlayerRecord{Address: "0xC"},
	)
	st.Session.ChainPlayers = []string{"0xA", "0xB", "0xC"}
	st.Roster.Patch("0xB", room.PlayerPatch{Signature: []byte{1}})

	// 0xC leaves the room without signing. The contract still expects its
	// signature, so the local accounting must keep expecting it too.
	st.Roster.Remove("0xC")

	signers := ExpectedSigners(st, "0xA")
	if len(signers) != 2 {
		t.Fatalf("expected signers after departure: %v", signers)
	}
	if ReadyToSubmit(st, "0xA") {
		t.Fatal("ready to submit with a departed unsigned player")
	}
}

func TestSignAndVerifyFlow(t *testing.T) {
	coord, signer := testCoordinator(t, chain.NewMemory())

	s := room.GameSession{
		GameID:    "0xg",
		Winner:    "0xW",
		CreatedAt: 1700000000,
		Started:   true,
		Ended:     true,
	}

	sig, err := coord.SignResult(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.VerifySignature(s, signer.Address(), sig); err != nil {
		t.Fatalf("verify: %v", err)
	}

	tampered := s
	tampered.Winner = "0xX"
	if err := coord.VerifySignature(tampered, signer.Address(), sig); err == nil {
		t.Fatal("signature verified for a different winner")
	}

	if _, err := coord.SignResult(room.GameSession{GameID: "0xg"}); err == nil {
		t.Fatal("signed a session with no result")
	}
}

func TestSubmitResultGuards(t *testing.T) {
	mem := chain.NewMemory()
	winner, winnerSigner := testCoordinator(t, mem)
	loser, loserSigner := testCoordinator(t, mem)
	ctx := context.Background()

	st := room.NewState("123456", winnerSigner.Address())
	st.Roster.Add(room.PlayerRecord{Address: winnerSigner.Address()})
	st.Roster.Add(room.PlayerRecord{Address: loserSigner.Address()})
	st.Session.Winner = winnerSigner.Address()
	st.Session.Started, st.Session.Ended = true, true

	// Bot test rounds never exist on chain; nothing to submit.
	if err := winner.SubmitResult(ctx, st); !errors.Is(err, ErrNoGameOnChain) {
		t.Fatalf("submit without chain game: %v", err)
	}

	players := []string{winnerSigner.Address(), loserSigner.Address()}
	ts, err := winner.CreateGame(ctx, st.Session.GameID, players, "0.5")
	if err != nil {
		t.Fatal(err)
	}
	st.Session.CreatedAt = ts
	st.Session.Status = room.StatusCreated
	st.Session.ChainPlayers = players

	if err := winner.Stake(ctx, st.Session.GameID, "0.5"); err != nil {
		t.Fatal(err)
	}
	if err := loser.Stake(ctx, st.Session.GameID, "0.5"); err != nil {
		t.Fatal(err)
	}

	// Missing signature: the submit must be refused locally.
	if err := winner.SubmitResult(ctx, st); err == nil {
		t.Fatal("submitted without the loser's signature")
	}

	sig, err := loser.SignResult(st.Session)
	if err != nil {
		t.Fatal(err)
	}
	st.Roster.Patch(loserSigner.Address(), room.PlayerPatch{Signature: sig})

	if err := winner.SubmitResult(ctx, st); err != nil {
		t.Fatalf("submit: %v", err)
	}

	status, err := winner.GameStatus(ctx, st.Session.GameID)
	if err != nil {
		t.Fatal(err)
	}
	if status != chain.GameCompleted {
		t.Fatalf("status after submit: %v", status)
	}
}

// race_smoke runs one full staked race in a single process: a local relay,
// an in-memory contract, a host and a follower. It exercises the same code
// paths as production minus the real chain, so a green run means the room
// protocol, the relay, and the settlement flow all hold together.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"monarcade/internal/chain"
	"monarcade/internal/http/handlers"
	"monarcade/internal/peer"
	"monarcade/internal/service"
	"monarcade/internal/transport"
	"monarcade/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	service.InitJWT("race-smoke-secret")

	// Local relay on a random port.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	hub := ws.NewHub(ws.NewMemoryRegistry())
	h := &handlers.Handler{}
	r.GET("/ws", h.WS(hub))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		if err := http.Serve(ln, r); err != nil {
			log.Printf("relay stopped: %v", err)
		}
	}()
	relayURL := fmt.Sprintf("ws://%s/ws", ln.Addr())
	log.Printf("relay up at %s", relayURL)

	// Two wallets, one shared in-memory contract.
	signerA, err := chain.NewLocalSigner()
	if err != nil {
		log.Fatalf("signer A: %v", err)
	}
	signerB, err := chain.NewLocalSigner()
	if err != nil {
		log.Fatalf("signer B: %v", err)
	}
	mem := chain.NewMemory()

	const contract = "0x0dfFacfEB3B20a64A90EdD175494367c6Ce1e866"
	const chainID = 10143

	cfg := func(signer *chain.LocalSigner) (peer.Config, error) {
		token, err := service.GenerateJWT(signer.Address())
		if err != nil {
			return peer.Config{}, err
		}
		return peer.Config{
			Transport:      transport.NewWS(relayURL, token),
			Chain:          mem.For(signer.Address()),
			Signer:         signer,
			Contract:       contract,
			ChainID:        chainID,
			JoinRetryDelay: 200 * time.Millisecond,
			PollInterval:   200 * time.Millisecond,
		}, nil
	}

	ctx := context.Background()

	cfgA, err := cfg(signerA)
	if err != nil {
		log.Fatalf("config A: %v", err)
	}
	host, err := peer.CreateRoom(ctx, cfgA)
	if err != nil {
		log.Fatalf("create room: %v", err)
	}
	log.Printf("host %s created room %s", host.Address(), host.RoomCode())

	if err := host.SetStake("0.1"); err != nil {
		log.Fatalf("set stake: %v", err)
	}

	cfgB, err := cfg(signerB)
	if err != nil {
		log.Fatalf("config B: %v", err)
	}
	follower, err := peer.JoinRoom(ctx, cfgB, host.RoomCode())
	if err != nil {
		log.Fatalf("join room: %v", err)
	}
	log.Printf("follower %s joined", follower.Address())

	if err := follower.ToggleReady(true); err != nil {
		log.Fatalf("follower ready: %v", err)
	}
	if err := host.ToggleReady(true); err != nil {
		log.Fatalf("host ready: %v", err)
	}

	// Ready → create → stake → barrier → start.
	waitFor(host, peer.EventRaceStarted, "host sees race start")
	waitFor(follower, peer.EventRaceStarted, "follower sees race start")

	// Host wins; follower signs, host submits.
	if err := host.ReportRaceEnd(host.Address()); err != nil {
		log.Fatalf("report race end: %v", err)
	}
	waitFor(host, peer.EventGameCompleted, "host sees settlement")
	waitFor(follower, peer.EventGameCompleted, "follower sees settlement")

	snap := host.Snapshot()
	log.Printf("final: winner=%s status=%s players=%d",
		snap.Session.Winner, snap.Session.Status, len(snap.Players))

	if err := host.ResetGame(); err != nil {
		log.Fatalf("reset: %v", err)
	}

	follower.Leave()
	host.Leave()
	log.Println("race smoke finished")
}

func waitFor(n peer.Node, kind peer.EventKind, what string) {
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-n.Events():
			log.Printf("[%s] %s: %s", n.Address()[:8], ev.Kind, ev.Message)
			if ev.Kind == kind {
				log.Printf("ok: %s", what)
				return
			}
			if ev.Kind == peer.EventError {
				log.Fatalf("peer error while waiting for %s: %s", what, ev.Message)
			}
		case <-deadline:
			log.Fatalf("timed out waiting for %s", what)
		}
	}
}

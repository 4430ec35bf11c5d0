package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monarcade/internal/transport"

	"github.com/gorilla/websocket"
)

func newRelay(t *testing.T) string {
	t.Helper()
	hub := NewHub(NewMemoryRegistry())
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("addr")
		if addr == "" {
			http.Error(w, "addr required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go NewClient(addr, conn, hub).Run(context.Background())
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRelayForwardsBothWays(t *testing.T) {
	relayURL := newRelay(t)
	ctx := context.Background()

	host := transport.NewWS(relayURL, "token")
	ln, err := host.Listen(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}

	joiner := transport.NewWS(relayURL, "token")
	caller, err := joiner.Connect(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}

	var callee transport.Link
	select {
	case callee = <-ln.Accept():
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}

	if err := caller.Send([]byte("hello host")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-callee.Recv():
		if string(msg) != "hello host" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("host never got the message")
	}

	if err := callee.Send([]byte("hello peer")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-caller.Recv():
		if string(msg) != "hello peer" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never got the reply")
	}
}

func TestRelayRefusesTakenAddress(t *testing.T) {
	relayURL := newRelay(t)
	ctx := context.Background()

	first := transport.NewWS(relayURL, "token")
	if _, err := first.Listen(ctx, "123456"); err != nil {
		t.Fatal(err)
	}

	second := transport.NewWS(relayURL, "token")
	if _, err := second.Listen(ctx, "123456"); !errors.Is(err, transport.ErrAddressTaken) {
		t.Fatalf("got %v, want ErrAddressTaken", err)
	}
}

func TestRelayConnectToNobody(t *testing.T) {
	relayURL := newRelay(t)

	joiner := transport.NewWS(relayURL, "token")
	if _, err := joiner.Connect(context.Background(), "999999"); !errors.Is(err, transport.ErrPeerNotFound) {
		t.Fatalf("got %v, want ErrPeerNotFound", err)
	}
}

func TestRelayNotifiesWhenPeerDies(t *testing.T) {
	relayURL := newRelay(t)
	ctx := context.Background()

	host := transport.NewWS(relayURL, "token")
	ln, err := host.Listen(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}

	joiner := transport.NewWS(relayURL, "token")
	caller, err := joiner.Connect(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	callee := <-ln.Accept()

	caller.Close()
	select {
	case <-callee.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("host never learned the peer left")
	}
}

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	if err := reg.Claim(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Claim(ctx, "123456"); !errors.Is(err, ErrAddressTaken) {
		t.Fatalf("double claim: %v", err)
	}
	if err := reg.Release(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Claim(ctx, "123456"); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryListenConnect(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ln, err := mem.Listen(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	if ln.Addr() != "123456" {
		t.Fatalf("addr = %s", ln.Addr())
	}

	if _, err := mem.Listen(ctx, "123456"); !errors.Is(err, ErrAddressTaken) {
		t.Fatalf("double listen: %v", err)
	}

	caller, err := mem.Connect(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}

	var callee Link
	select {
	case callee = <-ln.Accept():
	case <-time.After(time.Second):
		t.Fatal("accept timed out")
	}

	if err := caller.Send([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-callee.Recv():
		if string(msg) != "ping" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("recv timed out")
	}

	if err := callee.Send([]byte("pong")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-caller.Recv():
		if string(msg) != "pong" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("recv timed out")
	}
}

func TestMemoryConnectUnknownAddress(t *testing.T) {
	mem := NewMemory()
	if _, err := mem.Connect(context.Background(), "000000"); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("got %v, want ErrPeerNotFound", err)
	}
}

func TestMemoryCloseTearsDownBothHalves(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ln, err := mem.Listen(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	caller, err := mem.Connect(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	callee := <-ln.Accept()

	caller.Close()

	select {
	case <-callee.Done():
	case <-time.After(time.Second):
		t.Fatal("callee never saw the close")
	}
	if err := callee.Send([]byte("x")); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("send on closed link: %v", err)
	}
	// Closing again is harmless.
	if err := callee.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryListenerCloseFreesAddress(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ln, err := mem.Listen(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	ln.Close()

	if _, err := mem.Connect(ctx, "123456"); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("connect after close: %v", err)
	}
	if _, err := mem.Listen(ctx, "123456"); err != nil {
		t.Fatalf("address not freed: %v", err)
	}
}

package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"monarcade/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsHandshake  = 10 * time.Second
	wsRecvBuffer = 256
)

// WS carries links over a single websocket session to the relay. The peer
// claims one address for the session: the room code when hosting, a
// throwaway id when joining.
type WS struct {
	relayURL string
	token    string
	dialer   *websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	self       string
	links      map[string]*wsLink
	accepts    chan Link
	handshakes map[string]chan error

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewWS creates a transport backed by the given relay endpoint, e.g.
// "ws://localhost:8080/ws". The token authenticates the peer's wallet.
func NewWS(relayURL, token string) *WS {
	return &WS{
		relayURL:   relayURL,
		token:      token,
		dialer:     websocket.DefaultDialer,
		links:      make(map[string]*wsLink),
		handshakes: make(map[string]chan error),
		done:       make(chan struct{}),
	}
}

func (w *WS) Listen(ctx context.Context, addr string) (Listener, error) {
	if err := w.ensureSession(ctx, addr); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.accepts == nil {
		w.accepts = make(chan Link, wsRecvBuffer)
	}
	accepts := w.accepts
	w.mu.Unlock()

	return &wsListener{ws: w, addr: addr, accepts: accepts}, nil
}

func (w *WS) Connect(ctx context.Context, addr string) (Link, error) {
	// A joining peer never hosts anything, so any free address will do.
	if err := w.ensureSession(ctx, uuid.NewString()); err != nil {
		return nil, err
	}

	wait := make(chan error, 1)
	w.mu.Lock()
	w.handshakes[addr] = wait
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.handshakes, addr)
		w.mu.Unlock()
	}()

	if err := w.writeFrame(Frame{Kind: KindConnect, To: addr}); err != nil {
		return nil, err
	}

	select {
	case err := <-wait:
		if err != nil {
			return nil, err
		}
	case <-time.After(wsHandshake):
		return nil, ErrPeerNotFound
	case <-w.done:
		return nil, ErrLinkClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	link, ok := w.links[addr]
	if !ok {
		link = w.newLinkLocked(addr)
	}
	return link, nil
}

// ensureSession dials the relay once and claims the given address.
func (w *WS) ensureSession(ctx context.Context, claim string) error {
	w.mu.Lock()
	if w.conn != nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	u, err := url.Parse(w.relayURL)
	if err != nil {
		return fmt.Errorf("transport: bad relay url: %w", err)
	}
	q := u.Query()
	q.Set("addr", claim)
	q.Set("token", w.token)
	u.RawQuery = q.Encode()

	conn, _, err := w.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("transport: relay dial: %w", err)
	}

	// The relay answers the claim before anything else.
	conn.SetReadDeadline(time.Now().Add(wsHandshake))
	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("transport: relay handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch hello.Kind {
	case KindWelcome:
	case KindError:
		conn.Close()
		if hello.Reason == ReasonAddressTaken {
			return ErrAddressTaken
		}
		return fmt.Errorf("transport: relay refused: %s", hello.Reason)
	default:
		conn.Close()
		return fmt.Errorf("transport: unexpected relay frame %q", hello.Kind)
	}

	w.mu.Lock()
	w.conn = conn
	w.self = claim
	w.mu.Unlock()

	go w.readLoop(conn)
	return nil
}

func (w *WS) readLoop(conn *websocket.Conn) {
	defer w.teardown()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			logger.Debug("relay session closed", "self", w.self, "error", err)
			return
		}

		switch f.Kind {
		case KindConnect:
			w.handleConnect(f.From)
		case KindAccept:
			w.settleHandshake(f.From, nil)
		case KindData:
			w.deliver(f.From, f.Data)
		case KindClose:
			w.closePeer(f.From)
		case KindError:
			if f.Reason == ReasonPeerNotFound {
				w.settleHandshake(f.Peer, ErrPeerNotFound)
			} else {
				logger.Warn("relay error frame", "self", w.self, "reason", f.Reason)
			}
		}
	}
}

func (w *WS) handleConnect(from string) {
	w.mu.Lock()
	accepts := w.accepts
	link, known := w.links[from]
	if !known {
		link = w.newLinkLocked(from)
	}
	w.mu.Unlock()

	if accepts == nil {
		// Not listening; nothing will ever read this link.
		link.shutdown()
		_ = w.writeFrame(Frame{Kind: KindClose, To: from})
		return
	}

	_ = w.writeFrame(Frame{Kind: KindAccept, To: from})
	if !known {
		select {
		case accepts <- link:
		default:
			logger.Warn("accept queue full, dropping link", "from", from)
			link.shutdown()
		}
	}
}

func (w *WS) settleHandshake(peer string, err error) {
	w.mu.Lock()
	wait := w.handshakes[peer]
	w.mu.Unlock()
	if wait != nil {
		select {
		case wait <- err:
		default:
		}
	}
}

func (w *WS) deliver(from string, data []byte) {
	w.mu.Lock()
	link := w.links[from]
	w.mu.Unlock()
	if link == nil {
		logger.Debug("data from unknown peer dropped", "from", from)
		return
	}
	select {
	case link.recv <- data:
	case <-link.done:
	}
}

func (w *WS) closePeer(from string) {
	w.mu.Lock()
	link := w.links[from]
	delete(w.links, from)
	w.mu.Unlock()
	if link != nil {
		link.shutdown()
	}
}

// teardown closes every link; used when the relay session itself dies.
func (w *WS) teardown() {
	w.once.Do(func() { close(w.done) })

	w.mu.Lock()
	links := w.links
	w.links = make(map[string]*wsLink)
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	for _, l := range links {
		l.shutdown()
	}
	if conn != nil {
		conn.Close()
	}
}

func (w *WS) writeFrame(f Frame) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrLinkClosed
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("transport: relay write: %w", err)
	}
	return nil
}

// newLinkLocked registers a link for a peer; callers hold w.mu.
func (w *WS) newLinkLocked(remote string) *wsLink {
	l := &wsLink{
		ws:     w,
		remote: remote,
		recv:   make(chan []byte, wsRecvBuffer),
		done:   make(chan struct{}),
	}
	w.links[remote] = l
	return l
}

type wsListener struct {
	ws      *WS
	addr    string
	accepts chan Link
}

func (l *wsListener) Addr() string        { return l.addr }
func (l *wsListener) Accept() <-chan Link { return l.accepts }

// Close drops the whole relay session; a host without its address cannot
// keep its room.
func (l *wsListener) Close() error {
	l.ws.teardown()
	return nil
}

type wsLink struct {
	ws     *WS
	remote string
	recv   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (l *wsLink) RemoteAddr() string    { return l.remote }
func (l *wsLink) Recv() <-chan []byte   { return l.recv }
func (l *wsLink) Done() <-chan struct{} { return l.done }

func (l *wsLink) Send(payload []byte) error {
	select {
	case <-l.done:
		return ErrLinkClosed
	default:
	}
	return l.ws.writeFrame(Frame{Kind: KindData, To: l.remote, Data: payload})
}

func (l *wsLink) Close() error {
	_ = l.ws.writeFrame(Frame{Kind: KindClose, To: l.remote})
	l.ws.closePeer(l.remote)
	return nil
}

func (l *wsLink) shutdown() {
	l.once.Do(func() { close(l.done) })
}

package transport

import (
	"context"
	"strconv"
	"sync"
)

const memBuffer = 256

// Memory is an in-process transport. Tests use it to run a host and
// several followers inside one binary with real link semantics, including
// abrupt closes.
type Memory struct {
	mu        sync.Mutex
	listeners map[string]*memListener
	seq       int
}

func NewMemory() *Memory {
	return &Memory{listeners: make(map[string]*memListener)}
}

func (m *Memory) Listen(ctx context.Context, addr string) (Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[addr]; ok {
		return nil, ErrAddressTaken
	}
	l := &memListener{
		mem:    m,
		addr:   addr,
		accept: make(chan Link, memBuffer),
	}
	m.listeners[addr] = l
	return l, nil
}

func (m *Memory) Connect(ctx context.Context, addr string) (Link, error) {
	m.mu.Lock()
	l, ok := m.listeners[addr]
	if ok {
		m.seq++
	}
	seq := m.seq
	m.mu.Unlock()

	if !ok {
		return nil, ErrPeerNotFound
	}

	pair := &memPair{done: make(chan struct{})}
	ab := make(chan []byte, memBuffer)
	ba := make(chan []byte, memBuffer)

	caller := &memLink{remote: addr, in: ba, out: ab, pair: pair}
	callee := &memLink{remote: connName(addr, seq), in: ab, out: ba, pair: pair}

	select {
	case l.accept <- callee:
		return caller, nil
	case <-l.closed():
		return nil, ErrPeerNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connName labels the callee side of a pipe; only used in logs.
func connName(addr string, seq int) string {
	return addr + "#" + strconv.Itoa(seq)
}

type memListener struct {
	mem    *Memory
	addr   string
	accept chan Link

	closeOnce sync.Once
	closeCh   chan struct{}
	closeMu   sync.Mutex
}

func (l *memListener) Addr() string        { return l.addr }
func (l *memListener) Accept() <-chan Link { return l.accept }

func (l *memListener) closed() chan struct{} {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closeCh == nil {
		l.closeCh = make(chan struct{})
	}
	return l.closeCh
}

func (l *memListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed())
		l.mem.mu.Lock()
		delete(l.mem.listeners, l.addr)
		l.mem.mu.Unlock()
	})
	return nil
}

// memPair is the state shared by the two halves of one pipe; closing
// either half tears down both directions exactly once.
type memPair struct {
	done chan struct{}
	once sync.Once
}

func (p *memPair) close() { p.once.Do(func() { close(p.done) }) }

type memLink struct {
	remote string
	in     <-chan []byte
	out    chan<- []byte
	pair   *memPair
}

func (c *memLink) RemoteAddr() string    { return c.remote }
func (c *memLink) Recv() <-chan []byte   { return c.in }
func (c *memLink) Done() <-chan struct{} { return c.pair.done }

func (c *memLink) Send(payload []byte) error {
	msg := append([]byte(nil), payload...)
	select {
	case <-c.pair.done:
		return ErrLinkClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	case <-c.pair.done:
		return ErrLinkClosed
	}
}

func (c *memLink) Close() error {
	c.pair.close()
	return nil
}

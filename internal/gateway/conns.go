// ABOUTME: Live connection tracking for lockdown enforcement
// ABOUTME: Wraps listeners so every accepted connection can be severed at once

package gateway

import (
	"net"
	"sync"
)

// connTracker records every connection accepted through a wrapped listener
// so they can all be closed when lockdown activates.
type connTracker struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newConnTracker() *connTracker {
	return &connTracker{conns: make(map[net.Conn]struct{})}
}

// Wrap returns a listener whose accepted connections are tracked.
func (t *connTracker) Wrap(ln net.Listener) net.Listener {
	return &trackedListener{Listener: ln, tracker: t}
}

// CloseAll severs every live connection and returns how many were closed.
// New connections can still be accepted afterwards; the authorizer refuses
// them while lockdown holds.
func (t *connTracker) CloseAll() int {
	t.mu.Lock()
	conns := make([]net.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

// Len returns the number of live tracked connections.
func (t *connTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *connTracker) add(c net.Conn) {
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()
}

func (t *connTracker) remove(c net.Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

type trackedListener struct {
	net.Listener
	tracker *connTracker
}

func (l *trackedListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c, tracker: l.tracker}
	l.tracker.add(tc)
	return tc, nil
}

type trackedConn struct {
	net.Conn
	tracker *connTracker
	once    sync.Once
}

// Close removes the connection from the tracker exactly once; the
// underlying close error is still returned on repeat calls.
func (c *trackedConn) Close() error {
	c.once.Do(func() { c.tracker.remove(c) })
	return c.Conn.Close()
}

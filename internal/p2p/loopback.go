package p2p

import (
	"bytes"
	"io"
	"sync"
)

// loopback is an unbounded in-memory pipe. Writes never block; reads block
// until data arrives or the pipe is closed.
type loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newLoopback() *loopback {
	l := &loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := l.buf.Write(p)
	l.cond.Broadcast()
	return n, nil
}

func (l *loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.buf.Len() == 0 {
		if l.closed {
			return 0, io.EOF
		}
		l.cond.Wait()
	}
	return l.buf.Read(p)
}

func (l *loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
	return nil
}

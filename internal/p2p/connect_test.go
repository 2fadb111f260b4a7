package p2p

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/protocol/session"
	"github.com/danmuck/msgbuf/internal/testutil/testlog"
)

func TestSendrecvOverTCP(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		comm *Comm
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		c, err := Accept(ctx, ln, 1, session.DefaultConfig())
		accepted <- result{c, err}
	}()

	a, err := Dial(ctx, ln.Addr().String(), 0, session.DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()
	res := <-accepted
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	b := res.comm
	defer b.Close()

	if a.Peer() != 1 || b.Peer() != 0 || b.Rank() != 1 {
		t.Fatalf("unexpected ranks a=%d->%d b=%d->%d", a.Rank(), a.Peer(), b.Rank(), b.Peer())
	}

	src := buffer.Of([]float64{0, 1, 2, 3, 4})
	dst := buffer.Of(make([]float64, 5))
	echo := buffer.Of(make([]float64, 5))

	done := make(chan error, 1)
	go func() {
		_, err := b.Recv(message.Full(echo, message.Int(2), message.Int(1), message.Code("d")), 0, 9)
		if err == nil {
			err = b.Send(message.Bare(echo), 0, 10)
		}
		done <- err
	}()

	if err := a.Send(message.Full(src, message.Int(2), message.Int(1), message.Code("d")), 1, 9); err != nil {
		t.Fatalf("send: %v", err)
	}
	st, err := a.Recv(message.Bare(dst), 1, 10)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("peer: %v", err)
	}
	want := []float64{0, 1, 2, 0, 0}
	for i, v := range dst.Slice() {
		if v != want[i] {
			t.Fatalf("echo: got %v want %v", dst.Slice(), want)
		}
	}
	if st.Source != 1 || st.Count != 5 {
		t.Fatalf("unexpected status %+v", st)
	}
}

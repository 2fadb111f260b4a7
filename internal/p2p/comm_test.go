package p2p

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/danmuck/msgbuf/internal/protocol/tlv"
	"github.com/danmuck/msgbuf/internal/testutil/testlog"
)

func selfSendrecv(t *testing.T, c *Comm, send, recv message.Descriptor) Status {
	t.Helper()
	st, err := c.Sendrecv(send, 0, 0, recv, 0, 0)
	if err != nil {
		t.Fatalf("sendrecv %s -> %s: %v", send, recv, err)
	}
	return st
}

func equalInts(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSendrecvSelfScenario(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	s := buffer.Of([]int32{0, 1, 2, 3, 4})
	r := buffer.Of(make([]int32, 5))
	st := selfSendrecv(t, c,
		message.Full(s, message.Int(2), message.Int(1), message.Code("i")),
		message.Full(r, message.Int(2), message.Int(1), message.Code("i")),
	)
	if !equalInts(r.Slice(), []int32{0, 1, 2, 0, 0}) {
		t.Fatalf("unexpected recv buffer %v", r.Slice())
	}
	if st.Source != 0 || st.Tag != 0 || st.Count != 2 || st.Bytes != 8 || st.Datatype != datatype.Int {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.GetCount(datatype.Int) != 2 || st.GetCount(datatype.Short) != 4 || st.GetCount(datatype.Double) != 1 {
		t.Fatalf("unexpected GetCount results for %+v", st)
	}
	if st.GetCount(datatype.Long) != 1 || (Status{Bytes: 6}).GetCount(datatype.Int) != -1 {
		t.Fatalf("GetCount must reject partial elements")
	}
}

func TestSendrecvSelfWindows(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	for n := 1; n < 10; n++ {
		for disp := 0; disp <= n; disp++ {
			for count := 0; disp+count <= n; count++ {
				src := make([]float64, n)
				for i := range src {
					src[i] = float64(i)
				}
				s := buffer.Of(src)
				r := buffer.Of(make([]float64, n))
				selfSendrecv(t, c,
					message.WithCount(s, message.Int(count), message.Int(disp)),
					message.WithCount(r, message.Int(count), message.Int(disp)),
				)
				for i, v := range r.Slice() {
					want := 0.0
					if i >= disp && i < disp+count {
						want = src[i]
					}
					if v != want {
						t.Fatalf("n=%d disp=%d count=%d: index %d got %v want %v", n, disp, count, i, v, want)
					}
				}
			}
		}
	}
}

func TestSendrecvBadMessageLeavesLinkClean(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	buf := buffer.Alloc(4)
	empty := message.WithCountType(nil, message.Int(0), message.Opt{}, message.Code("B"))

	_, err := c.Sendrecv(message.WithCountType(buf, message.Int(0), message.Opt{}, message.Code("\x00")), 0, 0, empty, 0, 0)
	if !errors.Is(err, message.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
	_, err = c.Sendrecv(message.WithCountType(buf, message.Int(-1), message.Opt{}, message.Code("i")), 0, 0, empty, 0, 0)
	if !errors.Is(err, message.ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}
	_, err = c.Sendrecv(message.Full(buf, message.Int(0), message.Int(-1), message.Code("i")), 0, 0, empty, 0, 0)
	if !errors.Is(err, message.ErrNegativeDisplacement) {
		t.Fatalf("expected ErrNegativeDisplacement, got %v", err)
	}
	_, err = c.Sendrecv(message.Full(buf, message.Int(0), message.Int(2), message.Code("i")), 0, 0, empty, 0, 0)
	if !errors.Is(err, message.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	_, err = c.Sendrecv(message.Full(nil, message.Int(1), message.Int(0), message.Code("i")), 0, 0, empty, 0, 0)
	if !errors.Is(err, message.ErrNullBuffer) {
		t.Fatalf("expected ErrNullBuffer, got %v", err)
	}

	st, err := c.Sendrecv(empty, 0, 0, empty, 0, 0)
	if err != nil {
		t.Fatalf("empty exchange after failures: %v", err)
	}
	if st.Count != 0 || st.Bytes != 0 {
		t.Fatalf("unexpected status for empty exchange %+v", st)
	}
	if len(c.pending) != 0 {
		t.Fatalf("failed calls left %d queued envelopes", len(c.pending))
	}
}

func TestRecvTruncatedLeavesWindowUntouched(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	s := buffer.Of([]int16{1, 2, 3, 4})
	r := buffer.Of([]int16{9, 9, 9, 9})
	_, err := c.Sendrecv(message.Bare(s), 0, 0, message.WithCount(r, message.Int(2), message.Opt{}), 0, 0)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	for _, v := range r.Slice() {
		if v != 9 {
			t.Fatalf("truncated receive wrote into buffer: %v", r.Slice())
		}
	}
}

func TestRecvShorterMessageFillsPrefix(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	s := buffer.Of([]uint32{5, 6})
	r := buffer.Of([]uint32{0, 0, 0, 0})
	st := selfSendrecv(t, c, message.Bare(s), message.WithCount(r, message.Opt{}, message.Int(1)))
	got := r.Slice()
	if got[0] != 0 || got[1] != 5 || got[2] != 6 || got[3] != 0 || st.Count != 2 {
		t.Fatalf("unexpected buffer %v status %+v", got, st)
	}
}

func TestRecvTypeMismatch(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	s := buffer.Of([]int32{1})
	r := buffer.Of([]float32{0})
	if _, err := c.Sendrecv(message.Bare(s), 0, 0, message.Bare(r), 0, 0); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRecvMatchesByTagAndQueuesOthers(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	if err := c.Send(message.Bare(buffer.Of([]int64{1})), 0, 1); err != nil {
		t.Fatalf("send tag 1: %v", err)
	}
	if err := c.Send(message.Bare(buffer.Of([]int64{2})), 0, 2); err != nil {
		t.Fatalf("send tag 2: %v", err)
	}

	r := buffer.Of([]int64{0})
	st, err := c.Recv(message.Bare(r), AnySource, 2)
	if err != nil || r.Slice()[0] != 2 || st.Tag != 2 {
		t.Fatalf("recv tag 2: buf=%v st=%+v err=%v", r.Slice(), st, err)
	}
	if len(c.pending) != 1 {
		t.Fatalf("expected tag 1 to be queued, pending=%d", len(c.pending))
	}
	st, err = c.Recv(message.Bare(r), 0, AnyTag)
	if err != nil || r.Slice()[0] != 1 || st.Tag != 1 {
		t.Fatalf("recv any tag: buf=%v st=%+v err=%v", r.Slice(), st, err)
	}
}

func TestRankAndTagValidation(t *testing.T) {
	testlog.Start(t)
	c := Self()
	defer c.Close()

	d := message.Bare(buffer.Of([]int32{1}))
	if err := c.Send(d, 1, 0); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("expected ErrInvalidRank, got %v", err)
	}
	if err := c.Send(d, 0, -1); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
	if _, err := c.Recv(d, 3, 0); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("expected ErrInvalidRank, got %v", err)
	}
	if _, err := c.Recv(d, 0, -7); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestSendRejectsOversizedPayloadBeforeWriting(t *testing.T) {
	testlog.Start(t)
	c := Self(WithLimits(frame.Limits{MaxPayloadBytes: 32}))
	defer c.Close()

	big := buffer.Of(make([]float64, 16))
	if err := c.Send(message.Bare(big), 0, 0); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	_, err := c.Sendrecv(message.Bare(big), 0, 0, message.Bare(buffer.Of(make([]float64, 16))), 0, 0)
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge from sendrecv, got %v", err)
	}
}

func TestRecvMalformedEnvelope(t *testing.T) {
	testlog.Start(t)
	link := newLoopback()
	c := New(link, 0, 0)
	defer c.Close()

	payload := tlv.EncodeFields([]tlv.Field{tlv.U32(1, 0)})
	if err := frame.WriteFrame(link, frame.Frame{Header: frame.Header{Type: frame.TypeData}, Payload: payload}, frame.DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	_, err := c.Recv(message.Bare(buffer.Of([]int32{0})), AnySource, AnyTag)
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestRecvAfterCloseReturnsEOF(t *testing.T) {
	testlog.Start(t)
	c := Self()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := c.Recv(message.Bare(buffer.Of([]int32{0})), AnySource, AnyTag); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestSendrecvOverPipe(t *testing.T) {
	testlog.Start(t)
	left, right := net.Pipe()
	a := New(left, 0, 1)
	b := New(right, 1, 0)
	defer a.Close()
	defer b.Close()

	as := buffer.Of([]int32{1, 2, 3})
	ar := buffer.Of(make([]int32, 3))
	bs := buffer.Of([]int32{7, 8, 9})
	br := buffer.Of(make([]int32, 3))

	done := make(chan error, 1)
	go func() {
		_, err := b.Sendrecv(message.Bare(bs), 0, 5, message.Bare(br), 0, 4)
		done <- err
	}()
	st, err := a.Sendrecv(message.Bare(as), 1, 4, message.Bare(ar), 1, 5)
	if err != nil {
		t.Fatalf("rank 0 sendrecv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("rank 1 sendrecv: %v", err)
	}
	if !equalInts(ar.Slice(), []int32{7, 8, 9}) || !equalInts(br.Slice(), []int32{1, 2, 3}) {
		t.Fatalf("exchange mismatch: rank0=%v rank1=%v", ar.Slice(), br.Slice())
	}
	if st.Source != 1 || st.Tag != 5 {
		t.Fatalf("unexpected status %+v", st)
	}
	testlog.Logf("p2p/pipe: exchanged %d elements each way", st.Count)
}

func TestSendrecvFailedRecvDoesNotWaitOnStalledPeer(t *testing.T) {
	testlog.Start(t)
	left, right := net.Pipe()
	c := New(left, 0, 1, WithSendDrainTimeout(50*time.Millisecond))
	defer c.Close()
	defer right.Close()

	// The peer writes one malformed frame and never reads.
	go func() {
		payload := tlv.EncodeFields([]tlv.Field{tlv.U32(1, 0)})
		_ = frame.WriteFrame(right, frame.Frame{Header: frame.Header{Type: frame.TypeData}, Payload: payload}, frame.DefaultLimits())
	}()

	done := make(chan error, 1)
	go func() {
		s := buffer.Of([]int32{1, 2, 3})
		r := buffer.Of(make([]int32, 3))
		_, err := c.Sendrecv(message.Bare(s), 1, 0, message.Bare(r), 1, 0)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sendrecv blocked on a peer that stopped reading")
	}
}

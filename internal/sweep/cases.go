package sweep

import (
	"errors"
	"fmt"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/p2p"
)

type sweepCase struct {
	comm *p2p.Comm
	res  *Result
	code string
	dt   *datatype.Datatype
	n    int
	src  []float64
	s    buffer.Numeric
	r    buffer.Numeric
}

func newCase(comm *p2p.Comm, res *Result, code string, n int) (*sweepCase, error) {
	src := make([]float64, n)
	for i := range src {
		src[i] = float64(i)
	}
	s, err := buffer.FromValues(code, src)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	r, err := buffer.Zeros(code, n)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return &sweepCase{
		comm: comm,
		res:  res,
		code: code,
		dt:   s.Datatype(),
		n:    n,
		src:  src,
		s:    s,
		r:    r,
	}, nil
}

// typeSpecs mirrors the three ways a caller can name the element type.
func (c *sweepCase) typeSpecs() []message.TypeSpec {
	return []message.TypeSpec{message.Native(), message.Code(c.code), message.Handle(c.dt)}
}

func (c *sweepCase) run(suite Suite) {
	switch suite {
	case SuiteRoundTrip:
		c.exchange(message.Bare(c.s), message.Bare(c.r), 0, c.n)
	case SuiteTypeDefault:
		for _, t := range c.typeSpecs() {
			c.exchange(message.WithType(c.s, t), message.WithType(c.r, t), 0, c.n)
		}
	case SuiteCount:
		c.countSweep()
	case SuiteCountType:
		for _, t := range c.typeSpecs() {
			for _, count := range []message.Opt{{}, message.Int(c.n)} {
				c.exchange(
					message.WithCountType(c.s, count, message.Opt{}, t),
					message.WithCountType(c.r, count, message.Opt{}, t),
					0, c.n,
				)
			}
		}
	case SuiteWindow:
		c.windowSweep(message.WithCountType)
	case SuiteFull:
		c.windowSweep(message.Full)
	}
}

func (c *sweepCase) countSweep() {
	unset := message.Opt{}
	for count := range c.n {
		c.exchange(
			message.WithCount(c.s, message.Int(count), unset),
			message.WithCount(c.r, message.Int(count), unset),
			0, count,
		)
	}
	for count := range c.n {
		pair := message.Pair{Count: message.Int(count)}
		send, err := message.Parse(c.s, pair)
		if err != nil {
			c.fail(message.Descriptor{}, message.Descriptor{}, err.Error())
			continue
		}
		recv, err := message.Parse(c.r, pair)
		if err != nil {
			c.fail(send, message.Descriptor{}, err.Error())
			continue
		}
		c.exchange(send, recv, 0, count)
	}
	for disp := range c.n {
		c.exchange(
			message.WithCount(c.s, unset, message.Int(disp)),
			message.WithCount(c.r, unset, message.Int(disp)),
			disp, c.n,
		)
	}
	for disp := range c.n {
		for count := range c.n - disp {
			c.exchange(
				message.WithCount(c.s, message.Int(count), message.Int(disp)),
				message.WithCount(c.r, message.Int(count), message.Int(disp)),
				disp, disp+count,
			)
		}
	}
}

type typedCtor func(buf buffer.Buffer, count, disp message.Opt, t message.TypeSpec) message.Descriptor

func (c *sweepCase) windowSweep(build typedCtor) {
	for _, t := range c.typeSpecs() {
		for p := range c.n {
			c.exchange(
				build(c.s, message.Int(p), message.Opt{}, t),
				build(c.r, message.Int(p), message.Opt{}, t),
				0, p,
			)
			for q := p; q < c.n; q++ {
				c.exchange(
					build(c.s, message.Int(q-p), message.Int(p), t),
					build(c.r, message.Int(q-p), message.Int(p), t),
					p, q,
				)
			}
		}
	}
}

// exchange zeroes the receive buffer, transfers send into recv, and checks
// that r[lo:hi] matches the source and everything else is still zero.
func (c *sweepCase) exchange(send, recv message.Descriptor, lo, hi int) {
	c.res.Cases++
	c.r.Zero()

	peer := c.comm.Peer()
	st, err := c.comm.Sendrecv(send, peer, 0, recv, peer, 0)
	if err != nil {
		c.fail(send, recv, err.Error())
		return
	}
	if st.Count != hi-lo {
		c.fail(send, recv, fmt.Sprintf("received %d elements, want %d", st.Count, hi-lo))
		return
	}
	for i, got := range c.r.Float64s() {
		want := 0.0
		if i >= lo && i < hi {
			want = c.src[i]
		}
		if got != want {
			c.fail(send, recv, fmt.Sprintf("r[%d] = %v, want %v", i, got, want))
			return
		}
	}
}

func (c *sweepCase) fail(send, recv message.Descriptor, reason string) {
	c.res.Failures = append(c.res.Failures, Failure{
		Suite:  c.res.Suite,
		Code:   c.code,
		Len:    c.n,
		Send:   send.String(),
		Recv:   recv.String(),
		Reason: reason,
	})
}

type badCase struct {
	parts []any
	want  error
}

// badMessage checks that malformed descriptors are rejected with the right
// error kind and that the link still carries an empty message afterwards.
func badMessage(comm *p2p.Comm, res *Result) {
	buf := buffer.Alloc(4)
	peer := comm.Peer()
	empty, err := message.Parse(nil, 0, "B")
	if err != nil {
		res.Cases++
		res.Failures = append(res.Failures, Failure{Suite: res.Suite, Reason: err.Error()})
		return
	}

	cases := []badCase{
		{parts: []any{buf, 0, 0, "i", nil}, want: message.ErrMalformed},
		{parts: []any{buf, 0, "\x00"}, want: message.ErrLookup},
		{parts: []any{buf, -1, "i"}, want: message.ErrNegativeCount},
		{parts: []any{buf, 0, -1, "i"}, want: message.ErrNegativeDisplacement},
		{parts: []any{buf, 0, 2, "i"}, want: message.ErrOutOfBounds},
		{parts: []any{nil, 1, 0, "i"}, want: message.ErrNullBuffer},
	}
	for _, bc := range cases {
		res.Cases++
		send, err := message.Parse(bc.parts...)
		if err == nil {
			_, err = comm.Sendrecv(send, peer, 0, empty, peer, 0)
		}
		if !errors.Is(err, bc.want) {
			res.Failures = append(res.Failures, Failure{
				Suite:  res.Suite,
				Send:   fmt.Sprint(bc.parts),
				Recv:   empty.String(),
				Reason: fmt.Sprintf("got %v, want %v", err, bc.want),
			})
		}
	}

	res.Cases++
	if _, err := comm.Sendrecv(empty, peer, 0, empty, peer, 0); err != nil {
		res.Failures = append(res.Failures, Failure{
			Suite:  res.Suite,
			Send:   empty.String(),
			Recv:   empty.String(),
			Reason: err.Error(),
		})
	}
}

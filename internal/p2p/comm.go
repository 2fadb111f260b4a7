// Package p2p moves resolved message windows between two endpoints.
//
// Every operation resolves its descriptors before touching the connection, so
// a bad descriptor never leaves a partial frame on the wire. Windows travel
// as one frame each: a fixed header followed by a TLV envelope carrying
// source, tag, datatype code, element count, and the raw element bytes.
package p2p

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/observability"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	AnySource = -1
	AnyTag    = -1
	MaxTag    = 1<<31 - 1

	DefaultSendDrainTimeout = time.Second
)

var (
	ErrTruncated         = errors.New("p2p: message truncated")
	ErrTypeMismatch      = errors.New("p2p: datatype mismatch")
	ErrInvalidRank       = errors.New("p2p: invalid rank")
	ErrInvalidTag        = errors.New("p2p: invalid tag")
	ErrMalformedEnvelope = errors.New("p2p: malformed envelope")
)

// Status describes a completed receive.
type Status struct {
	Source   int
	Tag      int
	Datatype *datatype.Datatype
	Count    int
	Bytes    int
}

// GetCount returns the number of whole dt elements received, or -1 when the
// byte count is not a multiple of dt's size.
func (s Status) GetCount(dt *datatype.Datatype) int {
	if dt.Size() == 0 || s.Bytes%dt.Size() != 0 {
		return -1
	}
	return s.Bytes / dt.Size()
}

type Option func(*Comm)

func WithLimits(limits frame.Limits) Option {
	return func(c *Comm) {
		c.limits = limits
	}
}

// WithSendDrainTimeout bounds how long Sendrecv waits for its send after the
// receive half has failed. It applies to connections with write deadlines.
func WithSendDrainTimeout(d time.Duration) Option {
	return func(c *Comm) {
		c.drainTimeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Comm) {
		c.logger = &logger
	}
}

// Comm is one endpoint of a point-to-point link. It is safe for concurrent use.
type Comm struct {
	rank   int
	peer   int
	conn   io.ReadWriter
	limits frame.Limits
	logger *zerolog.Logger

	drainTimeout time.Duration

	writeMu sync.Mutex
	readMu  sync.Mutex
	seq     atomic.Uint64
	pending []envelope
}

// New wraps conn as the endpoint with the given rank talking to peer.
func New(conn io.ReadWriter, rank, peer int, opts ...Option) *Comm {
	c := &Comm{
		rank:   rank,
		peer:   peer,
		conn:   conn,
		limits: frame.DefaultLimits(),

		drainTimeout: DefaultSendDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Self returns a rank-0 endpoint connected to itself through an in-memory
// pipe. Sends are buffered, so Send followed by Recv does not deadlock.
func Self(opts ...Option) *Comm {
	return New(newLoopback(), 0, 0, opts...)
}

func (c *Comm) Rank() int {
	return c.rank
}

func (c *Comm) Peer() int {
	return c.peer
}

// Close closes the underlying connection when it supports closing.
func (c *Comm) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Send transfers the window described by d to dest.
func (c *Comm) Send(d message.Descriptor, dest, tag int) error {
	r, err := resolve(d)
	if err != nil {
		return err
	}
	if err := c.checkSend(r, dest, tag); err != nil {
		return err
	}
	return c.send(r, tag)
}

// Recv fills the window described by d with one matching message.
func (c *Comm) Recv(d message.Descriptor, source, tag int) (Status, error) {
	r, err := resolve(d)
	if err != nil {
		return Status{}, err
	}
	if err := c.checkRecv(source, tag); err != nil {
		return Status{}, err
	}
	return c.recv(r, source, tag)
}

// Sendrecv sends one window and receives into another. Both descriptors are
// resolved and checked before any byte moves.
func (c *Comm) Sendrecv(
	send message.Descriptor, dest, sendtag int,
	recv message.Descriptor, source, recvtag int,
) (Status, error) {
	sr, err := resolve(send)
	if err != nil {
		return Status{}, err
	}
	rr, err := resolve(recv)
	if err != nil {
		return Status{}, err
	}
	if err := c.checkSend(sr, dest, sendtag); err != nil {
		return Status{}, err
	}
	if err := c.checkRecv(source, recvtag); err != nil {
		return Status{}, err
	}

	sent := make(chan error, 1)
	go func() {
		sent <- c.send(sr, sendtag)
	}()
	st, recvErr := c.recv(rr, source, recvtag)
	if recvErr != nil {
		if sendErr := c.drainSend(sent); sendErr != nil {
			c.log().Warn().Err(sendErr).Msg("p2p send abandoned after failed recv")
		}
		return Status{}, recvErr
	}
	if sendErr := <-sent; sendErr != nil {
		return Status{}, sendErr
	}
	return st, nil
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// drainSend waits for an in-flight send once the receive half has failed. A
// peer that stopped reading gets drainTimeout before the write is abandoned.
func (c *Comm) drainSend(sent <-chan error) error {
	select {
	case err := <-sent:
		return err
	default:
	}
	wd, ok := c.conn.(writeDeadliner)
	if !ok {
		return <-sent
	}
	_ = wd.SetWriteDeadline(time.Now().Add(c.drainTimeout))
	err := <-sent
	_ = wd.SetWriteDeadline(time.Time{})
	return err
}

func resolve(d message.Descriptor) (message.Resolved, error) {
	r, err := message.Resolve(d)
	observability.RecordResolve(err)
	return r, err
}

func (c *Comm) checkSend(r message.Resolved, dest, tag int) error {
	if dest != c.peer {
		return fmt.Errorf("%w: dest=%d peer=%d", ErrInvalidRank, dest, c.peer)
	}
	if tag < 0 || tag > MaxTag {
		return fmt.Errorf("%w: tag=%d", ErrInvalidTag, tag)
	}
	if uint64(envelopeLen(r)) > c.limits.MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", frame.ErrPayloadTooLarge, r.Bytes())
	}
	return nil
}

func (c *Comm) checkRecv(source, tag int) error {
	if source != AnySource && source != c.peer {
		return fmt.Errorf("%w: source=%d peer=%d", ErrInvalidRank, source, c.peer)
	}
	if tag != AnyTag && (tag < 0 || tag > MaxTag) {
		return fmt.Errorf("%w: tag=%d", ErrInvalidTag, tag)
	}
	return nil
}

func (c *Comm) send(r message.Resolved, tag int) error {
	payload := encodeEnvelope(c.rank, tag, r)

	c.writeMu.Lock()
	err := frame.WriteFrame(c.conn, frame.Frame{
		Header:  frame.Header{Type: frame.TypeData, Sequence: c.seq.Add(1)},
		Payload: payload,
	}, c.limits)
	c.writeMu.Unlock()

	observability.RecordTransfer("send", r.Datatype.Code(), r.Bytes(), err == nil)
	if err != nil {
		c.log().Error().Err(err).Int("tag", tag).Msg("p2p send failed")
		return err
	}
	c.log().Debug().
		Int("rank", c.rank).
		Int("tag", tag).
		Str("datatype", r.Datatype.Code()).
		Int("count", r.Count).
		Int("displacement", r.Displacement).
		Msg("p2p send")
	return nil
}

func (c *Comm) recv(r message.Resolved, source, tag int) (Status, error) {
	c.readMu.Lock()
	env, err := c.match(source, tag)
	c.readMu.Unlock()
	if err != nil {
		observability.RecordTransfer("recv", r.Datatype.Code(), 0, false)
		return Status{}, err
	}

	st, err := deliver(r, env)
	observability.RecordTransfer("recv", r.Datatype.Code(), st.Bytes, err == nil)
	if err != nil {
		c.log().Warn().Err(err).Int("source", env.source).Int("tag", env.tag).Msg("p2p recv rejected")
		return Status{}, err
	}
	c.log().Debug().
		Int("rank", c.rank).
		Int("source", st.Source).
		Int("tag", st.Tag).
		Str("datatype", st.Datatype.Code()).
		Int("count", st.Count).
		Int("displacement", r.Displacement).
		Msg("p2p recv")
	return st, nil
}

// match returns the first queued or incoming envelope for (source, tag).
// Non-matching envelopes are queued in arrival order. Callers hold readMu.
func (c *Comm) match(source, tag int) (envelope, error) {
	for i, env := range c.pending {
		if env.matches(source, tag) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return env, nil
		}
	}
	for {
		f, err := frame.ReadFrame(c.conn, c.limits)
		if err != nil {
			return envelope{}, err
		}
		env, err := decodeEnvelope(f)
		if err != nil {
			return envelope{}, err
		}
		if env.matches(source, tag) {
			return env, nil
		}
		c.pending = append(c.pending, env)
	}
}

// deliver copies env into the receive window. Nothing is written on error.
func deliver(r message.Resolved, env envelope) (Status, error) {
	if env.datatype != r.Datatype {
		return Status{}, fmt.Errorf("%w: got %s want %s", ErrTypeMismatch, env.datatype, r.Datatype)
	}
	if env.count > r.Count {
		return Status{}, fmt.Errorf("%w: got %d elements, window holds %d", ErrTruncated, env.count, r.Count)
	}
	n := copy(r.Window(), env.data)
	return Status{
		Source:   env.source,
		Tag:      env.tag,
		Datatype: env.datatype,
		Count:    env.count,
		Bytes:    n,
	}, nil
}

func (c *Comm) log() *zerolog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return &log.Logger
}

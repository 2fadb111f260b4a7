package session

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Link is an established connection to one peer rank. Reads go through the
// handshake reader so bytes buffered past the ack are not lost.
type Link struct {
	conn     net.Conn
	reader   *bufio.Reader
	rank     int
	peerRank int
}

func (l *Link) Read(p []byte) (int, error) {
	return l.reader.Read(p)
}

func (l *Link) Write(p []byte) (int, error) {
	return l.conn.Write(p)
}

// SetWriteDeadline bounds pending and future writes on the link.
func (l *Link) SetWriteDeadline(t time.Time) error {
	return l.conn.SetWriteDeadline(t)
}

func (l *Link) Close() error {
	return l.conn.Close()
}

func (l *Link) Rank() int {
	return l.rank
}

func (l *Link) PeerRank() int {
	return l.peerRank
}

func (l *Link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}

// Dial connects to addr as rank, retrying with backoff, and completes the
// hello exchange.
func Dial(ctx context.Context, addr string, rank int, cfg Config) (*Link, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; cfg.MaxConnectAttempts == 0 || attempt <= cfg.MaxConnectAttempts; attempt++ {
		if attempt > 1 {
			delay := NextBackoffDelay(cfg.Backoff, attempt-1, rng)
			log.Debug().
				Str("addr", addr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("session dial retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		link, err := clientHandshake(conn, rank, cfg)
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.Info().
			Str("addr", addr).
			Int("rank", rank).
			Int("peer", link.peerRank).
			Msg("session link established")
		return link, nil
	}
	return nil, fmt.Errorf("session: dial %s failed after %d attempts: %w", addr, cfg.MaxConnectAttempts, lastErr)
}

// Accept waits for one peer on ln and answers its hello as rank. A context
// deadline bounds the wait when ln supports deadlines.
func Accept(ctx context.Context, ln net.Listener, rank int, cfg Config) (*Link, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
			_ = dl.SetDeadline(deadline)
		}
	}
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	link, err := serverHandshake(conn, rank, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().
		Str("remote", conn.RemoteAddr().String()).
		Int("rank", rank).
		Int("peer", link.peerRank).
		Msg("session link accepted")
	return link, nil
}

func clientHandshake(conn net.Conn, rank int, cfg Config) (*Link, error) {
	if cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
		defer conn.SetDeadline(time.Time{})
	}
	if err := WriteHello(conn, LocalHello(rank)); err != nil {
		return nil, err
	}
	reader := bufio.NewReader(conn)
	ack, err := ReadHelloAck(reader)
	if err != nil {
		return nil, err
	}
	if ack.Status != AckStatusAccepted {
		return nil, fmt.Errorf("%w: %s", ErrRejected, ack.Message)
	}
	if ack.Rank == rank {
		return nil, fmt.Errorf("%w: peer claims rank %d", ErrInvalidHelloAck, ack.Rank)
	}
	return &Link{conn: conn, reader: reader, rank: rank, peerRank: ack.Rank}, nil
}

func serverHandshake(conn net.Conn, rank int, cfg Config) (*Link, error) {
	if cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
		defer conn.SetDeadline(time.Time{})
	}
	reader := bufio.NewReader(conn)
	hello, err := ReadHello(reader)
	if err != nil {
		return nil, err
	}

	reject := func(cause error) (*Link, error) {
		_ = WriteHelloAck(conn, HelloAck{Status: AckStatusRejected, Rank: rank, Message: cause.Error()})
		return nil, cause
	}
	if err := hello.Compatible(); err != nil {
		return reject(err)
	}
	if hello.Rank == rank {
		return reject(fmt.Errorf("%w: duplicate rank %d", ErrInvalidHello, rank))
	}
	if err := WriteHelloAck(conn, HelloAck{Status: AckStatusAccepted, Rank: rank}); err != nil {
		return nil, err
	}
	return &Link{conn: conn, reader: reader, rank: rank, peerRank: hello.Rank}, nil
}

package p2p

import (
	"context"
	"net"

	"github.com/danmuck/msgbuf/internal/protocol/session"
)

// Dial connects to a listening peer as rank and returns the endpoint.
func Dial(ctx context.Context, addr string, rank int, cfg session.Config, opts ...Option) (*Comm, error) {
	link, err := session.Dial(ctx, addr, rank, cfg)
	if err != nil {
		return nil, err
	}
	return New(link, rank, link.PeerRank(), opts...), nil
}

// Accept waits for one peer on ln and returns the endpoint as rank.
func Accept(ctx context.Context, ln net.Listener, rank int, cfg session.Config, opts ...Option) (*Comm, error) {
	link, err := session.Accept(ctx, ln, rank, cfg)
	if err != nil {
		return nil, err
	}
	return New(link, rank, link.PeerRank(), opts...), nil
}

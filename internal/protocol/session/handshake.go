package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
)

const (
	helloType    = "link.hello"
	helloAckType = "link.hello.ack"

	AckStatusAccepted = "accepted"
	AckStatusRejected = "rejected"

	maxHandshakeLine = 64 * 1024
)

var (
	ErrInvalidHello      = errors.New("session: invalid hello")
	ErrInvalidHelloAck   = errors.New("session: invalid hello ack")
	ErrHandshakeTooLarge = errors.New("session: handshake message too large")
	ErrRejected          = errors.New("session: link rejected by peer")
	ErrDatatypeMismatch  = errors.New("session: datatype tables differ")
)

// Hello opens a link. Datatypes maps every registered code to its byte size
// so both ends agree on element layout before any window moves.
type Hello struct {
	Rank      int            `json:"rank"`
	Version   uint16         `json:"version"`
	Datatypes map[string]int `json:"datatypes"`
}

// LocalHello describes this process as rank.
func LocalHello(rank int) Hello {
	table := make(map[string]int, len(datatype.All()))
	for _, dt := range datatype.All() {
		table[dt.Code()] = dt.Size()
	}
	return Hello{Rank: rank, Version: frame.Version, Datatypes: table}
}

func (h Hello) Validate() error {
	if h.Rank < 0 {
		return fmt.Errorf("%w: negative rank %d", ErrInvalidHello, h.Rank)
	}
	if h.Version == 0 {
		return fmt.Errorf("%w: missing version", ErrInvalidHello)
	}
	if len(h.Datatypes) == 0 {
		return fmt.Errorf("%w: missing datatypes", ErrInvalidHello)
	}
	return nil
}

// Compatible reports whether h can exchange frames with this process.
func (h Hello) Compatible() error {
	if h.Version != frame.Version {
		return fmt.Errorf("%w: version %d", frame.ErrUnsupportedVersion, h.Version)
	}
	for _, dt := range datatype.All() {
		size, ok := h.Datatypes[dt.Code()]
		if !ok {
			return fmt.Errorf("%w: peer lacks %q", ErrDatatypeMismatch, dt.Code())
		}
		if size != dt.Size() {
			return fmt.Errorf("%w: %q is %d bytes, peer says %d", ErrDatatypeMismatch, dt.Code(), dt.Size(), size)
		}
	}
	return nil
}

// HelloAck answers a Hello.
type HelloAck struct {
	Status  string `json:"status"`
	Rank    int    `json:"rank"`
	Message string `json:"message,omitempty"`
}

func (a HelloAck) Validate() error {
	status := strings.TrimSpace(a.Status)
	if status != AckStatusAccepted && status != AckStatusRejected {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidHelloAck, a.Status)
	}
	if a.Rank < 0 {
		return fmt.Errorf("%w: negative rank %d", ErrInvalidHelloAck, a.Rank)
	}
	return nil
}

type handshakeEnvelope struct {
	Type  string    `json:"type"`
	Hello *Hello    `json:"hello,omitempty"`
	Ack   *HelloAck `json:"ack,omitempty"`
}

func WriteHello(w io.Writer, h Hello) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return writeEnvelope(w, handshakeEnvelope{Type: helloType, Hello: &h})
}

func ReadHello(r *bufio.Reader) (Hello, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return Hello{}, err
	}
	if env.Type != helloType || env.Hello == nil {
		return Hello{}, fmt.Errorf("%w: unexpected message type %q", ErrInvalidHello, env.Type)
	}
	if err := env.Hello.Validate(); err != nil {
		return Hello{}, err
	}
	return *env.Hello, nil
}

func WriteHelloAck(w io.Writer, ack HelloAck) error {
	if err := ack.Validate(); err != nil {
		return err
	}
	return writeEnvelope(w, handshakeEnvelope{Type: helloAckType, Ack: &ack})
}

func ReadHelloAck(r *bufio.Reader) (HelloAck, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return HelloAck{}, err
	}
	if env.Type != helloAckType || env.Ack == nil {
		return HelloAck{}, fmt.Errorf("%w: unexpected message type %q", ErrInvalidHelloAck, env.Type)
	}
	if err := env.Ack.Validate(); err != nil {
		return HelloAck{}, err
	}
	return *env.Ack, nil
}

func writeEnvelope(w io.Writer, env handshakeEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}

func readEnvelope(r *bufio.Reader) (handshakeEnvelope, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return handshakeEnvelope{}, err
		}
		line = append(line, chunk...)
		if len(line) > maxHandshakeLine {
			return handshakeEnvelope{}, ErrHandshakeTooLarge
		}
		if !isPrefix {
			break
		}
	}
	var env handshakeEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return handshakeEnvelope{}, err
	}
	return env, nil
}

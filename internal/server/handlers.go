package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danmuck/msgbuf/internal/buffer"
	"github.com/danmuck/msgbuf/internal/config"
	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/message"
	"github.com/danmuck/msgbuf/internal/observability"
	"github.com/danmuck/msgbuf/internal/p2p"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/danmuck/msgbuf/internal/sweep"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// BufferSpec describes the memory behind a descriptor. Exactly one of Values,
// Len, or Raw is used: Values and Len build a typed buffer of Code, Raw
// allocates that many untyped bytes.
type BufferSpec struct {
	Code   string    `json:"code,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Len    *int      `json:"len,omitempty"`
	Raw    *int      `json:"raw,omitempty"`
}

// DescriptorSpec is the JSON form of a descriptor list: the buffer followed
// by up to three args (count or [count, displacement], displacement, type).
// A null buffer stands for no memory.
type DescriptorSpec struct {
	Buffer *BufferSpec `json:"buffer"`
	Args   []any       `json:"args"`
}

type DatatypeInfo struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Size int    `json:"size"`
}

type ResolveResponse struct {
	Descriptor   string `json:"descriptor"`
	Shape        string `json:"shape"`
	Datatype     string `json:"datatype"`
	Count        int    `json:"count"`
	Displacement int    `json:"displacement"`
	Capacity     int    `json:"capacity"`
	Offset       int    `json:"offset"`
	Bytes        int    `json:"bytes"`
}

type SendrecvRequest struct {
	Send DescriptorSpec `json:"send"`
	Recv DescriptorSpec `json:"recv"`
}

type StatusInfo struct {
	Source   int    `json:"source"`
	Tag      int    `json:"tag"`
	Datatype string `json:"datatype"`
	Count    int    `json:"count"`
	Bytes    int    `json:"bytes"`
}

type SendrecvResponse struct {
	Status StatusInfo `json:"status"`
	Recv   []float64  `json:"recv,omitempty"`
}

type SweepResponse struct {
	OK     bool         `json:"ok"`
	Report sweep.Report `json:"report"`
}

var errBadBuffer = errors.New("server: invalid buffer spec")

func (s *Server) handleDatatypes(c *gin.Context) {
	all := datatype.All()
	out := make([]DatatypeInfo, 0, len(all))
	for _, dt := range all {
		out = append(out, DatatypeInfo{Name: dt.Name(), Code: dt.Code(), Size: dt.Size()})
	}
	c.JSON(http.StatusOK, gin.H{"datatypes": out})
}

func (s *Server) handleResolve(c *gin.Context) {
	var req DescriptorSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", errBadBuffer, err))
		return
	}
	d, _, err := req.build(s.Limits)
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := message.Resolve(d)
	observability.RecordResolve(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResolveResponse{
		Descriptor:   d.String(),
		Shape:        d.Shape().String(),
		Datatype:     r.Datatype.Code(),
		Count:        r.Count,
		Displacement: r.Displacement,
		Capacity:     r.Capacity(),
		Offset:       r.Offset(),
		Bytes:        r.Bytes(),
	})
}

func (s *Server) handleSendrecv(c *gin.Context) {
	var req SendrecvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", errBadBuffer, err))
		return
	}
	send, _, err := req.Send.build(s.Limits)
	if err != nil {
		writeError(c, err)
		return
	}
	recv, recvBuf, err := req.Recv.build(s.Limits)
	if err != nil {
		writeError(c, err)
		return
	}

	comm := p2p.Self(p2p.WithLimits(s.Limits))
	defer comm.Close()
	st, err := comm.Sendrecv(send, 0, 0, recv, 0, 0)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := SendrecvResponse{Status: StatusInfo{
		Source:   st.Source,
		Tag:      st.Tag,
		Datatype: st.Datatype.Code(),
		Count:    st.Count,
		Bytes:    st.Bytes,
	}}
	if numeric, ok := recvBuf.(buffer.Numeric); ok {
		resp.Recv = numeric.Float64s()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSweep(c *gin.Context) {
	plan := config.DefaultSweepPlan()
	if err := c.ShouldBindJSON(&plan); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, fmt.Errorf("%w: %w", errBadBuffer, err))
		return
	}
	if err := config.ValidateSweepPlan(plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "plan"})
		return
	}
	if *plan.MaxLen > s.MaxSweepLen {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("max_len %d exceeds server limit %d", *plan.MaxLen, s.MaxSweepLen),
			"kind":  "plan",
		})
		return
	}
	opts, err := plan.Options()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "plan"})
		return
	}

	comm := p2p.Self(p2p.WithLimits(s.Limits))
	defer comm.Close()
	report, err := sweep.Run(c.Request.Context(), comm, opts)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "kind": "canceled"})
		return
	}
	log.Info().
		Str("server", s.ID).
		Str("plan", plan.Name).
		Int("cases", report.Cases).
		Int("failed", report.Failed).
		Msg("sweep finished")
	c.JSON(http.StatusOK, SweepResponse{OK: report.OK(), Report: report})
}

// build turns the spec into a descriptor and returns the buffer it wraps.
func (d DescriptorSpec) build(limits frame.Limits) (message.Descriptor, buffer.Buffer, error) {
	buf, err := d.Buffer.build(limits)
	if err != nil {
		return message.Descriptor{}, nil, err
	}
	parts := make([]any, 0, 1+len(d.Args))
	if buf == nil {
		parts = append(parts, nil)
	} else {
		parts = append(parts, buf)
	}
	parts = append(parts, d.Args...)
	desc, err := message.Parse(parts...)
	if err != nil {
		return message.Descriptor{}, nil, err
	}
	return desc, buf, nil
}

// build allocates the described buffer. Sizes are checked against limits
// before any memory is taken.
func (b *BufferSpec) build(limits frame.Limits) (buffer.Buffer, error) {
	if b == nil {
		return nil, nil
	}
	switch {
	case b.Raw != nil:
		if *b.Raw < 0 {
			return nil, fmt.Errorf("%w: raw size %d", errBadBuffer, *b.Raw)
		}
		if err := checkSize(*b.Raw, 1, limits); err != nil {
			return nil, err
		}
		return buffer.Alloc(*b.Raw), nil
	case b.Len != nil:
		if *b.Len < 0 {
			return nil, fmt.Errorf("%w: len %d", errBadBuffer, *b.Len)
		}
		dt, err := datatype.Lookup(b.Code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBuffer, err)
		}
		if err := checkSize(*b.Len, dt.Size(), limits); err != nil {
			return nil, err
		}
		buf, err := buffer.Zeros(b.Code, *b.Len)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBuffer, err)
		}
		return buf, nil
	default:
		dt, err := datatype.Lookup(b.Code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBuffer, err)
		}
		if err := checkSize(len(b.Values), dt.Size(), limits); err != nil {
			return nil, err
		}
		buf, err := buffer.FromValues(b.Code, b.Values)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBuffer, err)
		}
		return buf, nil
	}
}

// checkSize rejects n elements of size bytes when they exceed the payload limit.
func checkSize(n, size int, limits frame.Limits) error {
	if size <= 0 || uint64(n) > limits.MaxPayloadBytes/uint64(size) {
		return fmt.Errorf("%w: %d elements of %d bytes exceed %d", frame.ErrPayloadTooLarge, n, size, limits.MaxPayloadBytes)
	}
	return nil
}

// writeError maps resolver and transfer failures onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, errBadBuffer):
		status, kind = http.StatusBadRequest, "request"
	case errors.Is(err, message.ErrLookup):
		status, kind = http.StatusBadRequest, "lookup"
	case errors.Is(err, message.ErrValue):
		status, kind = http.StatusBadRequest, "value"
	case errors.Is(err, p2p.ErrTruncated), errors.Is(err, p2p.ErrTypeMismatch):
		status, kind = http.StatusUnprocessableEntity, "transfer"
	case errors.Is(err, frame.ErrPayloadTooLarge):
		status, kind = http.StatusRequestEntityTooLarge, "transfer"
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

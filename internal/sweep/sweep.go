// Package sweep runs descriptor conformance sweeps over a p2p endpoint.
//
// Each suite exchanges windows of a source buffer s = [0, 1, ..., n-1] into a
// zeroed receive buffer and checks that exactly the described window arrived.
// Suites iterate every type code in the plan and every buffer length in
// [MinLen, MaxLen].
package sweep

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/danmuck/msgbuf/internal/p2p"
	"github.com/rs/zerolog/log"
)

type Suite string

const (
	SuiteRoundTrip   Suite = "roundtrip"
	SuiteTypeDefault Suite = "type-default"
	SuiteCount       Suite = "count"
	SuiteCountType   Suite = "count-type"
	SuiteWindow      Suite = "window"
	SuiteFull        Suite = "full"
	SuiteBadMessage  Suite = "bad-message"
)

var allSuites = []Suite{
	SuiteRoundTrip,
	SuiteTypeDefault,
	SuiteCount,
	SuiteCountType,
	SuiteWindow,
	SuiteFull,
	SuiteBadMessage,
}

// Suites returns every suite in run order.
func Suites() []Suite {
	return slices.Clone(allSuites)
}

func ParseSuite(raw string) (Suite, error) {
	s := Suite(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(allSuites, s) {
		return "", fmt.Errorf("sweep: unknown suite %q", raw)
	}
	return s, nil
}

const DefaultCodes = "hilHILfd"

// Options selects what a Run covers.
type Options struct {
	Codes  string
	MinLen int
	MaxLen int
	Suites []Suite
}

func DefaultOptions() Options {
	return Options{
		Codes:  DefaultCodes,
		MinLen: 1,
		MaxLen: 9,
		Suites: Suites(),
	}
}

// Validate checks that every code is registered and the length range is sane.
func (o Options) Validate() error {
	if o.Codes == "" {
		return fmt.Errorf("sweep: no type codes")
	}
	for _, code := range o.Codes {
		if _, err := datatype.Lookup(string(code)); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}
	if o.MinLen < 0 || o.MaxLen < o.MinLen {
		return fmt.Errorf("sweep: invalid length range [%d, %d]", o.MinLen, o.MaxLen)
	}
	if len(o.Suites) == 0 {
		return fmt.Errorf("sweep: no suites selected")
	}
	for _, s := range o.Suites {
		if _, err := ParseSuite(string(s)); err != nil {
			return err
		}
	}
	return nil
}

// Failure records one case that did not behave as described.
type Failure struct {
	Suite  Suite  `json:"suite"`
	Code   string `json:"code,omitempty"`
	Len    int    `json:"len"`
	Send   string `json:"send"`
	Recv   string `json:"recv"`
	Reason string `json:"reason"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s code=%q n=%d send=%s recv=%s: %s", f.Suite, f.Code, f.Len, f.Send, f.Recv, f.Reason)
}

type Result struct {
	Suite    Suite     `json:"suite"`
	Cases    int       `json:"cases"`
	Failures []Failure `json:"failures,omitempty"`
}

type Report struct {
	Results []Result `json:"results"`
	Cases   int      `json:"cases"`
	Failed  int      `json:"failed"`
}

func (r Report) OK() bool {
	return r.Failed == 0
}

// Failures flattens every failure in suite order.
func (r Report) Failures() []Failure {
	var out []Failure
	for _, res := range r.Results {
		out = append(out, res.Failures...)
	}
	return out
}

// Run executes opts against comm. A nil comm runs over a fresh self endpoint.
// Case failures land in the report; the error is reserved for invalid options
// and cancellation.
func Run(ctx context.Context, comm *p2p.Comm, opts Options) (Report, error) {
	if err := opts.Validate(); err != nil {
		return Report{}, err
	}
	if comm == nil {
		comm = p2p.Self()
		defer comm.Close()
	}

	var report Report
	for _, suite := range opts.Suites {
		res := Result{Suite: suite}
		if suite == SuiteBadMessage {
			badMessage(comm, &res)
		} else {
			for _, code := range opts.Codes {
				for n := opts.MinLen; n <= opts.MaxLen; n++ {
					if err := ctx.Err(); err != nil {
						return report, err
					}
					c, err := newCase(comm, &res, string(code), n)
					if err != nil {
						return report, err
					}
					c.run(suite)
				}
			}
		}
		log.Debug().
			Str("suite", string(suite)).
			Int("cases", res.Cases).
			Int("failures", len(res.Failures)).
			Msg("sweep suite done")
		report.Results = append(report.Results, res)
		report.Cases += res.Cases
		report.Failed += len(res.Failures)
	}
	return report, nil
}

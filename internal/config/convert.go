package config

import (
	"strings"

	"github.com/danmuck/msgbuf/internal/sweep"
)

// Options converts the plan into sweep options. An empty suite list selects
// every suite.
func (p SweepPlan) Options() (sweep.Options, error) {
	opts := sweep.DefaultOptions()
	opts.Codes = strings.TrimSpace(p.Codes)
	if p.MinLen != nil {
		opts.MinLen = *p.MinLen
	}
	if p.MaxLen != nil {
		opts.MaxLen = *p.MaxLen
	}
	if len(p.Suites) > 0 {
		opts.Suites = opts.Suites[:0]
		for _, raw := range p.Suites {
			s, err := sweep.ParseSuite(raw)
			if err != nil {
				return sweep.Options{}, err
			}
			opts.Suites = append(opts.Suites, s)
		}
	}
	if err := opts.Validate(); err != nil {
		return sweep.Options{}, err
	}
	return opts, nil
}

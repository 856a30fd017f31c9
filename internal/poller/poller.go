// Package poller refreshes the container listing on a fixed cadence and on
// demand.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dockdash/internal/state"
)

const DefaultInterval = time.Second

// Lister returns the current container set.
type Lister interface {
	ListProcesses(ctx context.Context) ([]state.Process, error)
}

// Sink receives poll outcomes. *state.Store satisfies it.
type Sink interface {
	ApplyPollResult(procs []state.Process, at time.Time)
	ApplyPollFailure(err error)
}

type Poller struct {
	lister   Lister
	sink     Sink
	interval time.Duration
	trigger  chan struct{}
	log      *zap.Logger
	now      func() time.Time
}

func New(lister Lister, sink Sink, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		lister:   lister,
		sink:     sink,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		log:      log,
		now:      time.Now,
	}
}

// Trigger requests a poll outside the normal cadence. Requests made while
// one is already pending collapse into it.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls immediately and then on every tick or trigger until ctx is
// done. A failed poll never stops the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.trigger:
			ticker.Reset(p.interval)
		}
		p.PollOnce(ctx)
	}
}

// PollOnce performs a single listing and records the outcome.
func (p *Poller) PollOnce(ctx context.Context) {
	procs, err := p.lister.ListProcesses(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warn("poll failed", zap.Error(err))
		p.sink.ApplyPollFailure(err)
		return
	}
	p.log.Debug("poll", zap.Int("containers", len(procs)))
	p.sink.ApplyPollResult(procs, p.now())
}

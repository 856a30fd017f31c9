// Package logstream follows the output of the one selected process and
// feeds it to the store in batches.
package logstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

const (
	DefaultFlushEvery = 100 * time.Millisecond
	DefaultMaxBatch   = 256
)

// Opener starts a live output stream for a process.
type Opener interface {
	OpenLogs(ctx context.Context, p state.Process) (execx.LineStream, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, p state.Process) (execx.LineStream, error)

func (f OpenerFunc) OpenLogs(ctx context.Context, p state.Process) (execx.LineStream, error) {
	return f(ctx, p)
}

// Sink is the generation-tagged log surface of *state.Store.
type Sink interface {
	BeginLog(target string) uint64
	EndLog(gen uint64)
	ApplyLogAppend(gen uint64, lines []string) bool
	ApplyLogEnd(gen uint64, err error)
}

// Streamer keeps at most one stream attached. Attach and Detach never block
// on the underlying command.
type Streamer struct {
	opener     Opener
	sink       Sink
	flushEvery time.Duration
	maxBatch   int
	log        *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	target string
	wg     sync.WaitGroup
}

func New(opener Opener, sink Sink, log *zap.Logger) *Streamer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Streamer{
		opener:     opener,
		sink:       sink,
		flushEvery: DefaultFlushEvery,
		maxBatch:   DefaultMaxBatch,
		log:        log,
	}
}

// Attach replaces any current stream with one for p and returns the new
// generation.
func (s *Streamer) Attach(ctx context.Context, p state.Process) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()

	ctx, cancel := context.WithCancel(ctx)
	gen := s.sink.BeginLog(p.ID)
	s.cancel, s.gen, s.target = cancel, gen, p.ID
	s.log.Debug("log attach", zap.String("target", p.Name), zap.Uint64("gen", gen))

	s.wg.Add(1)
	go s.pump(ctx, gen, p)
	return gen
}

// Detach stops the current stream. It is idempotent.
func (s *Streamer) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Streamer) detachLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.sink.EndLog(s.gen)
	s.log.Debug("log detach", zap.String("target", s.target), zap.Uint64("gen", s.gen))
	s.cancel, s.target = nil, ""
}

// Target returns the attached process id, or "".
func (s *Streamer) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Wait blocks until every pump goroutine has returned. Call after Detach.
func (s *Streamer) Wait() {
	s.wg.Wait()
}

func (s *Streamer) pump(ctx context.Context, gen uint64, p state.Process) {
	defer s.wg.Done()

	stream, err := s.opener.OpenLogs(ctx, p)
	if err != nil {
		s.log.Warn("open log stream", zap.String("target", p.Name), zap.Error(err))
		s.sink.ApplyLogEnd(gen, err)
		return
	}
	defer stream.Close()

	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	var batch []string
	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		ok := s.sink.ApplyLogAppend(gen, batch)
		batch = nil
		return ok
	}

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-stream.Lines():
			if !ok {
				if !flush() {
					return
				}
				code, err := stream.Wait()
				if err == nil && code != 0 {
					err = fmt.Errorf("log stream exited with status %d", code)
				}
				if err != nil {
					s.log.Warn("log stream ended", zap.String("target", p.Name), zap.Error(err))
				}
				s.sink.ApplyLogEnd(gen, err)
				return
			}
			batch = append(batch, line)
			if len(batch) >= s.maxBatch && !flush() {
				return
			}
		case <-ticker.C:
			if !flush() {
				return
			}
		}
	}
}

package execx

import (
	"context"
	"strings"
	"sync"
)

// Pipe is an in-memory LineStream. Producers call Send until it reports the
// consumer is gone, then Finish exactly once.
type Pipe struct {
	lines    chan string
	done     chan struct{}
	finished chan struct{}

	closeOnce  sync.Once
	finishOnce sync.Once

	mu   sync.Mutex
	code int
	err  error
}

var _ LineStream = (*Pipe)(nil)

func NewPipe(buf int) *Pipe {
	return &Pipe{
		lines:    make(chan string, buf),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Send delivers one line. It blocks while the buffer is full and returns
// false once the consumer has closed the pipe.
func (p *Pipe) Send(line string) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.lines <- line:
		return true
	case <-p.done:
		return false
	}
}

// Finish records the exit status and closes Lines. Send must not be called
// afterwards.
func (p *Pipe) Finish(code int, err error) {
	p.finishOnce.Do(func() {
		p.mu.Lock()
		p.code, p.err = code, err
		p.mu.Unlock()
		close(p.lines)
		close(p.finished)
	})
}

func (p *Pipe) Lines() <-chan string { return p.lines }

// Done is closed when the consumer calls Close.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Wait blocks until Finish has been called.
func (p *Pipe) Wait() (int, error) {
	<-p.finished
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.err
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// Output runs name and returns its trimmed stdout, treating a non-zero exit
// as an *ExitError.
func Output(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	res, err := r.Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	if err := res.Err(name); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Package execx runs external commands either to completion or as
// cancellable line streams. Every child gets its own process group and is
// torn down as a tree, so abandoning a stream never leaves orphans behind.
package execx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	defaultGrace     = 200 * time.Millisecond
	defaultWaitDelay = 2 * time.Second
	streamBuffer     = 256
)

// Result is the outcome of a capture-once command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Err converts a non-zero exit into an *ExitError.
func (r Result) Err(name string) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Name: name, Code: r.ExitCode, Stderr: string(bytes.TrimSpace(r.Stderr))}
}

// LineStream is a live sequence of output lines from a long-running source.
// Lines is closed once the source is exhausted. Close may be called at any
// point, from any goroutine, and more than once.
type LineStream interface {
	Lines() <-chan string
	Wait() (int, error)
	Close() error
}

// Runner is the command boundary used by every worker.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	Stream(ctx context.Context, name string, args ...string) (LineStream, error)
}

// Executor is the os/exec backed Runner.
type Executor struct {
	Dir     string
	Env     []string
	Timeout time.Duration
	Grace   time.Duration
}

var _ Runner = (*Executor)(nil)

// Run blocks until the command exits. A non-zero exit is not an error; the
// caller inspects Result.ExitCode or uses Result.Err.
func (e *Executor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := e.command(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, &SpawnError{Name: name, Err: err}
	}
	err := cmd.Wait()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s: %w", name, ErrTimeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, &IOError{Op: "wait " + name, Err: err}
}

// Stream starts the command and returns its merged stdout/stderr as lines.
// Cancelling ctx or calling Close terminates the process group; the
// process is reaped in the background.
func (e *Executor) Stream(ctx context.Context, name string, args ...string) (LineStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := e.command(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &IOError{Op: "stdout pipe", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &IOError{Op: "stderr pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &SpawnError{Name: name, Err: err}
	}

	s := &procStream{Pipe: NewPipe(streamBuffer), cancel: cancel}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.pump(stdout, &wg)
	go s.pump(stderr, &wg)

	go func() {
		wg.Wait()
		err := cmd.Wait()
		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
				err = nil
				if code == -1 {
					err = exitErr
				}
			} else {
				code = -1
				err = &IOError{Op: "wait " + name, Err: err}
			}
		}
		cancel()
		s.Finish(code, err)
	}()

	return s, nil
}

func (e *Executor) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	prepareCommand(cmd)
	grace := e.Grace
	if grace == 0 {
		grace = defaultGrace
	}
	cmd.Cancel = func() error {
		terminate(cmd, grace)
		return nil
	}
	cmd.WaitDelay = defaultWaitDelay
	return cmd
}

type procStream struct {
	*Pipe
	cancel context.CancelFunc
}

func (s *procStream) pump(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if !s.Send(scanner.Text()) {
			// Consumer is gone; keep draining so the child never blocks on a
			// full pipe before it is killed.
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.Send(fmt.Sprintf("[stream error] %v", err))
	}
}

// Close stops delivery immediately and kills the process tree. It returns
// before the process has been reaped.
func (s *procStream) Close() error {
	_ = s.Pipe.Close()
	s.cancel()
	return nil
}

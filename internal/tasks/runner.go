// Package tasks runs the project's manual tasks: shell commands started and
// stopped on demand, each with its own output history.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

var ErrUnknownTask = errors.New("unknown task")

const idPrefix = "task:"

// ID returns the process id used for a task in the store.
func ID(name string) string { return idPrefix + name }

// Def is a named task. Commands run in order and stop at the first failure.
type Def struct {
	Name     string
	Commands []string
	Source   string
}

func (d Def) Command() string { return joinCommands(d.Commands) }

type Options struct {
	Shell        string
	Init         []string
	HistoryLines int
}

// Sink is the task surface of *state.Store.
type Sink interface {
	SetTasks(tasks []state.Process)
	ApplyTaskState(p state.Process)
}

type task struct {
	def     Def
	proc    state.Process
	history *state.LogBuffer
	subs    map[*subscriber]struct{}

	stream  execx.LineStream
	done    chan struct{}
	stopped bool
}

// Runner owns every task process. All methods are safe for concurrent use.
type Runner struct {
	ctx   context.Context
	exec  execx.Runner
	opts  Options
	sink  Sink
	log   *zap.Logger
	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

// New creates a Runner. Task processes live until ctx is done, Stop is
// called, or they exit.
func New(ctx context.Context, exec execx.Runner, opts Options, sink Sink, log *zap.Logger) *Runner {
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.HistoryLines <= 0 {
		opts.HistoryLines = 1200
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctx: ctx, exec: exec, opts: opts, sink: sink, log: log, tasks: make(map[string]*task)}
}

// SetDefs replaces the task set. Tasks that keep their name keep their
// history and running process; removed tasks are stopped.
func (r *Runner) SetDefs(defs []Def) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*task, len(defs))
	for _, def := range defs {
		if t, ok := r.tasks[def.Name]; ok {
			t.def = def
			next[def.Name] = t
			continue
		}
		next[def.Name] = &task{
			def:     def,
			proc:    state.Process{ID: ID(def.Name), Name: def.Name, Kind: state.KindTask, State: state.Created, Status: "not started"},
			history: state.NewLogBuffer(r.opts.HistoryLines),
			subs:    make(map[*subscriber]struct{}),
		}
	}
	for name, t := range r.tasks {
		if _, ok := next[name]; ok {
			continue
		}
		if t.stream != nil {
			t.stopped = true
			_ = t.stream.Close()
		}
		for sub := range t.subs {
			_ = sub.pipe.Close()
		}
	}
	r.tasks = next
	r.sink.SetTasks(r.processesLocked())
}

func (r *Runner) processesLocked() []state.Process {
	procs := make([]state.Process, 0, len(r.tasks))
	for _, t := range r.tasks {
		procs = append(procs, t.proc)
	}
	slices.SortFunc(procs, func(a, b state.Process) int { return strings.Compare(a.Name, b.Name) })
	return procs
}

// Defs returns the current definitions sorted by name.
func (r *Runner) Defs() []Def {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs := make([]Def, 0, len(r.tasks))
	for _, t := range r.tasks {
		defs = append(defs, t.def)
	}
	slices.SortFunc(defs, func(a, b Def) int { return strings.Compare(a.Name, b.Name) })
	return defs
}

// Start launches the task, restarting it if it is already running. It
// returns once the process has been spawned.
func (r *Runner) Start(ctx context.Context, name string) error {
	if err := r.Stop(ctx, name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if t.stream != nil {
		// Started concurrently while we were stopping it.
		return nil
	}

	command := BuildShellCommand(r.opts.Init, t.def.Commands)
	if command == "" {
		return fmt.Errorf("task %s has no commands", name)
	}
	stream, err := r.exec.Stream(r.ctx, r.opts.Shell, "-c", command)
	if err != nil {
		r.appendLocked(t, fmt.Sprintf("==> FAIL (%v)", err))
		t.proc.State = state.Exited
		t.proc.ExitCode = -1
		t.proc.Status = "failed to start"
		r.sink.ApplyTaskState(t.proc)
		return err
	}

	done := make(chan struct{})
	t.stream, t.done, t.stopped = stream, done, false
	r.appendLocked(t, "==> START: "+t.def.Command())
	t.proc.State = state.Running
	t.proc.ExitCode = 0
	t.proc.Status = "running"
	r.sink.ApplyTaskState(t.proc)
	r.log.Debug("task started", zap.String("task", name))

	r.wg.Add(1)
	go r.pump(t, stream, done)
	return nil
}

func (r *Runner) pump(t *task, stream execx.LineStream, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)

	for line := range stream.Lines() {
		r.mu.Lock()
		r.appendLocked(t, line)
		r.mu.Unlock()
	}
	code, err := stream.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.stream != stream {
		return
	}
	switch {
	case t.stopped:
		r.appendLocked(t, "==> STOPPED (user)")
		t.proc.Status = "stopped"
	case err == nil && code == 0:
		r.appendLocked(t, "==> OK")
		t.proc.Status = "ok"
	default:
		r.appendLocked(t, fmt.Sprintf("==> FAIL (exit %d)", code))
		t.proc.Status = fmt.Sprintf("exit %d", code)
		r.log.Warn("task failed", zap.String("task", t.def.Name), zap.Int("exit", code), zap.Error(err))
	}
	t.proc.State = state.Exited
	t.proc.ExitCode = code
	t.stream, t.done = nil, nil
	r.sink.ApplyTaskState(t.proc)
}

// Stop terminates the task's process tree and waits for it to exit. Stopping
// a task that is not running is a no-op.
func (r *Runner) Stop(ctx context.Context, name string) error {
	r.mu.Lock()
	t, ok := r.tasks[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if t.stream == nil {
		r.mu.Unlock()
		return nil
	}
	t.stopped = true
	_ = t.stream.Close()
	done := t.done
	r.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll stops every running task and waits for their output pumps.
func (r *Runner) StopAll() {
	r.mu.Lock()
	var names []string
	for name, t := range r.tasks {
		if t.stream != nil {
			names = append(names, name)
		}
	}
	r.mu.Unlock()

	for _, name := range names {
		_ = r.Stop(context.Background(), name)
	}
	r.wg.Wait()
}

// Follow returns the task's history followed by live output. Every line
// reaches the stream in order however slowly it is read. The stream only
// ends when closed.
func (r *Runner) Follow(name string) (execx.LineStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	sub := newSubscriber(execx.NewPipe(256))
	for _, line := range t.history.Lines() {
		sub.push(line)
	}
	t.subs[sub] = struct{}{}

	go sub.run()
	go func() {
		<-sub.pipe.Done()
		r.mu.Lock()
		delete(t.subs, sub)
		r.mu.Unlock()
		sub.close()
	}()
	return sub.pipe, nil
}

// History returns a copy of the task's retained output.
func (r *Runner) History(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[name]; ok {
		return t.history.Lines()
	}
	return nil
}

func (r *Runner) appendLocked(t *task, line string) {
	t.history.Append(line)
	for sub := range t.subs {
		sub.push(line)
	}
}

// subscriber queues lines for one Follow stream. push never blocks, so it
// can be called under Runner.mu; run delivers the queue with blocking sends.
type subscriber struct {
	pipe *execx.Pipe

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	closed bool
}

func newSubscriber(pipe *execx.Pipe) *subscriber {
	s := &subscriber{pipe: pipe}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber) push(line string) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, line)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *subscriber) run() {
	defer s.pipe.Finish(0, nil)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, line := range batch {
			if !s.pipe.Send(line) {
				return
			}
		}
	}
}

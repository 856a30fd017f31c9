// Package action runs lifecycle operations against containers and tasks on
// background workers and records their progress in the store.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

// ErrUnsupported is returned when an action does not apply to the target's
// kind.
var ErrUnsupported = errors.New("action not supported for this target")

// FailedError is the failure recorded on a PendingAction.
type FailedError struct {
	Action string
	Reason string
	Err    error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Action, e.Reason)
}

func (e *FailedError) Unwrap() error { return e.Err }

type Docker interface {
	Action(ctx context.Context, kind state.ActionKind, id string) error
	Inspect(ctx context.Context, id string) (string, error)
	Reset(ctx context.Context, id string, step func(string)) error
	ComposeUp(ctx context.Context, restart bool, step func(string)) error
	ComposeTarget() string
}

type Tasks interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

// Store is the action surface of *state.Store.
type Store interface {
	ReserveAction(a state.PendingAction) (state.PendingAction, error)
	ApplyActionTransition(id uuid.UUID, next state.ActionState, reason, output string) error
}

// Refresher requests an out-of-cadence poll.
type Refresher interface {
	Trigger()
}

// Executor runs each submitted action on its own goroutine.
//
// Submit is unconditional: it never asks for confirmation. Callers must
// confirm destructive actions (remove, reset, and compose-up over a running
// stack) exactly once before submitting them.
type Executor struct {
	ctx     context.Context
	docker  Docker
	tasks   Tasks
	store   Store
	refresh Refresher
	log     *zap.Logger
	wg      sync.WaitGroup
}

func New(ctx context.Context, docker Docker, tasks Tasks, store Store, refresh Refresher, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{ctx: ctx, docker: docker, tasks: tasks, store: store, refresh: refresh, log: log}
}

// Supported reports whether kind can be submitted against p.
func Supported(p state.Process, kind state.ActionKind) bool {
	switch p.Kind {
	case state.KindTask:
		return kind == state.ActionStart || kind == state.ActionStop
	case state.KindContainer:
		return kind >= state.ActionStart && kind <= state.ActionInspect
	default:
		return false
	}
}

type work func(ctx context.Context, step func(string)) (string, error)

// Submit reserves the target and starts the action. It fails synchronously
// with state.ErrConflict when another exclusive action for the same target
// is queued or running, and with ErrUnsupported for invalid combinations.
func (e *Executor) Submit(p state.Process, kind state.ActionKind) (state.PendingAction, error) {
	if !Supported(p, kind) {
		return state.PendingAction{}, fmt.Errorf("%w: %s on %s %s", ErrUnsupported, kind, p.Kind, p.Name)
	}

	var fn work
	switch p.Kind {
	case state.KindTask:
		fn = e.taskWork(p, kind)
	case state.KindContainer:
		fn = e.containerWork(p, kind)
	}
	return e.submit(state.PendingAction{Target: p.ID, TargetName: p.Name, Kind: kind}, fn)
}

// SubmitCompose brings the stack up, or restarts it when restart is set.
func (e *Executor) SubmitCompose(restart bool) (state.PendingAction, error) {
	target := e.docker.ComposeTarget()
	return e.submit(state.PendingAction{Target: target, TargetName: target, Kind: state.ActionComposeUp},
		func(ctx context.Context, step func(string)) (string, error) {
			return "", e.docker.ComposeUp(ctx, restart, step)
		})
}

func (e *Executor) taskWork(p state.Process, kind state.ActionKind) work {
	return func(ctx context.Context, _ func(string)) (string, error) {
		if kind == state.ActionStart {
			return "", e.tasks.Start(ctx, p.Name)
		}
		return "", e.tasks.Stop(ctx, p.Name)
	}
}

func (e *Executor) containerWork(p state.Process, kind state.ActionKind) work {
	switch kind {
	case state.ActionInspect:
		return func(ctx context.Context, _ func(string)) (string, error) {
			return e.docker.Inspect(ctx, p.ID)
		}
	case state.ActionReset:
		return func(ctx context.Context, step func(string)) (string, error) {
			return "", e.docker.Reset(ctx, p.ID, step)
		}
	default:
		return func(ctx context.Context, _ func(string)) (string, error) {
			return "", e.docker.Action(ctx, kind, p.ID)
		}
	}
}

func (e *Executor) submit(a state.PendingAction, fn work) (state.PendingAction, error) {
	a.ID = uuid.New()
	a.SubmittedAt = time.Now()
	reserved, err := e.store.ReserveAction(a)
	if err != nil {
		return reserved, err
	}
	e.log.Debug("action queued", zap.String("action", reserved.Label()), zap.Stringer("id", reserved.ID))

	e.wg.Add(1)
	go e.run(reserved, fn)
	return reserved, nil
}

func (e *Executor) run(a state.PendingAction, fn work) {
	defer e.wg.Done()
	_ = e.store.ApplyActionTransition(a.ID, state.ActionRunning, "", "")

	var (
		mu    sync.Mutex
		steps []string
	)
	step := func(line string) {
		mu.Lock()
		steps = append(steps, line)
		mu.Unlock()
	}

	out, err := fn(e.ctx, step)

	mu.Lock()
	if len(steps) > 0 {
		out = strings.Join(append(steps, out), "\n")
		out = strings.TrimRight(out, "\n")
	}
	mu.Unlock()

	if err != nil {
		failed := &FailedError{Action: a.Label(), Reason: execx.Reason(err), Err: err}
		e.log.Warn("action failed", zap.String("action", a.Label()), zap.Error(err))
		_ = e.store.ApplyActionTransition(a.ID, state.ActionFailed, failed.Reason, out)
	} else {
		e.log.Debug("action succeeded", zap.String("action", a.Label()))
		_ = e.store.ApplyActionTransition(a.ID, state.ActionSucceeded, "", out)
	}

	// The terminal transition is published first, so the refreshed listing
	// is always observed after the outcome.
	if a.Kind.Exclusive() && e.refresh != nil {
		e.refresh.Trigger()
	}
}

// Wait blocks until every submitted action has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

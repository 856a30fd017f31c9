package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

type reply struct {
	procs []state.Process
	err   error
}

type scriptedLister struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

func (l *scriptedLister) ListProcesses(context.Context) ([]state.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if len(l.replies) == 0 {
		return nil, nil
	}
	r := l.replies[0]
	if len(l.replies) > 1 {
		l.replies = l.replies[1:]
	}
	return r.procs, r.err
}

func (l *scriptedLister) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func procs(pairs ...any) []state.Process {
	var out []state.Process
	for i := 0; i < len(pairs); i += 2 {
		name := pairs[i].(string)
		out = append(out, state.Process{ID: name, Name: name, State: pairs[i+1].(state.Lifecycle)})
	}
	return out
}

func names(snap *state.Snapshot) []string {
	var out []string
	for _, p := range snap.Processes {
		out = append(out, p.Name)
	}
	return out
}

func TestIOErrorKeepsPreviousListing(t *testing.T) {
	store := state.NewStore(10)
	lister := &scriptedLister{replies: []reply{
		{procs: procs("web", state.Running, "db", state.Exited)},
		{err: &execx.IOError{Op: "stdout pipe", Err: errors.New("broken pipe")}},
		{procs: procs("web", state.Running, "db", state.Exited)},
	}}
	p := New(lister, store, time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	p.PollOnce(ctx)
	first := store.Snapshot()
	require.Equal(t, []string{"db", "web"}, names(first))

	p.PollOnce(ctx)
	failed := store.Snapshot()
	assert.Equal(t, first.Processes, failed.Processes)
	assert.Contains(t, failed.Warning, "broken pipe")

	p.PollOnce(ctx)
	assert.Empty(t, store.Snapshot().Warning)
}

func TestParseErrorIsTransient(t *testing.T) {
	store := state.NewStore(10)
	lister := &scriptedLister{replies: []reply{
		{procs: procs("web", state.Running)},
		{err: errors.New("unexpected docker output")},
		{err: errors.New("unexpected docker output")},
		{procs: procs("web", state.Running)},
	}}
	p := New(lister, store, time.Hour, nil)
	for range 3 {
		p.PollOnce(context.Background())
	}
	// Failed polls are not absences.
	assert.Equal(t, []string{"web"}, names(store.Snapshot()))
	p.PollOnce(context.Background())
	assert.Empty(t, store.Snapshot().Warning)
}

func TestTriggerPollsOutOfCadence(t *testing.T) {
	store := state.NewStore(10)
	lister := &scriptedLister{}
	p := New(lister, store, time.Hour, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return lister.count() == 1 }, time.Second, 5*time.Millisecond)
	p.Trigger()
	require.Eventually(t, func() bool { return lister.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop")
	}
}

func TestTriggerCoalesces(t *testing.T) {
	p := New(&scriptedLister{}, state.NewStore(10), time.Hour, nil)
	p.Trigger()
	p.Trigger()
	p.Trigger()
	assert.Len(t, p.trigger, 1)
}

func TestRunKeepsPollingAfterFailures(t *testing.T) {
	store := state.NewStore(10)
	lister := &scriptedLister{replies: []reply{
		{err: &execx.SpawnError{Name: "docker", Err: errors.New("executable file not found")}},
		{err: execx.ErrTimeout},
		{procs: procs("web", state.Running)},
	}}
	p := New(lister, store, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return len(snap.Processes) == 1 && snap.Warning == ""
	}, 2*time.Second, 5*time.Millisecond)
}

package tasks

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

func newTestRunner(t *testing.T, opts Options, defs ...Def) (*Runner, *state.Store) {
	t.Helper()
	store := state.NewStore(100)
	r := New(context.Background(), &execx.Executor{Dir: t.TempDir(), Grace: 10 * time.Millisecond}, opts, store, zaptest.NewLogger(t))
	r.SetDefs(defs)
	t.Cleanup(r.StopAll)
	return r, store
}

func waitState(t *testing.T, store *state.Store, name string, want state.Lifecycle) state.Process {
	t.Helper()
	var p state.Process
	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		var ok bool
		p, ok = snap.Process(ID(name))
		return ok && p.State == want
	}, 3*time.Second, 5*time.Millisecond, "task %s never reached %s", name, want)
	return p
}

func TestTaskSuccess(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "hello", Commands: []string{"printf 'hello\\nworld\\n'"}})

	p, ok := store.Snapshot().Process(ID("hello"))
	require.True(t, ok)
	assert.Equal(t, state.Created, p.State)
	assert.Equal(t, state.KindTask, p.Kind)

	require.NoError(t, r.Start(context.Background(), "hello"))
	p = waitState(t, store, "hello", state.Exited)
	assert.Equal(t, 0, p.ExitCode)

	history := r.History("hello")
	require.Len(t, history, 4)
	assert.Equal(t, "==> START: printf 'hello\\nworld\\n'", history[0])
	assert.Equal(t, []string{"hello", "world"}, history[1:3])
	assert.Equal(t, "==> OK", history[3])
}

func TestTaskFailure(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "bad", Commands: []string{"echo one", "exit 3", "echo two"}})

	require.NoError(t, r.Start(context.Background(), "bad"))
	p := waitState(t, store, "bad", state.Exited)
	assert.Equal(t, 3, p.ExitCode)

	history := r.History("bad")
	assert.Contains(t, history, "one")
	assert.NotContains(t, history, "two")
	assert.Equal(t, "==> FAIL (exit 3)", history[len(history)-1])
}

func TestTaskStop(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "sleepy", Commands: []string{"sleep 5"}})

	require.NoError(t, r.Start(context.Background(), "sleepy"))
	waitState(t, store, "sleepy", state.Running)

	start := time.Now()
	require.NoError(t, r.Stop(context.Background(), "sleepy"))
	assert.Less(t, time.Since(start), 3*time.Second)

	p, _ := store.Snapshot().Process(ID("sleepy"))
	assert.Equal(t, state.Exited, p.State)
	history := r.History("sleepy")
	assert.Equal(t, "==> STOPPED (user)", history[len(history)-1])

	require.NoError(t, r.Stop(context.Background(), "sleepy"))
}

func TestTaskStartRestartsRunningTask(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "server", Commands: []string{"echo up; sleep 5"}})

	require.NoError(t, r.Start(context.Background(), "server"))
	waitState(t, store, "server", state.Running)
	require.NoError(t, r.Start(context.Background(), "server"))
	waitState(t, store, "server", state.Running)

	starts := 0
	for _, line := range r.History("server") {
		if strings.HasPrefix(line, "==> START") {
			starts++
		}
	}
	assert.Equal(t, 2, starts)
	assert.Contains(t, r.History("server"), "==> STOPPED (user)")
}

func TestTaskInitPrefix(t *testing.T) {
	r, store := newTestRunner(t, Options{Init: []string{"export GREETING=hi"}}, Def{Name: "greet", Commands: []string{"echo $GREETING"}})

	require.NoError(t, r.Start(context.Background(), "greet"))
	waitState(t, store, "greet", state.Exited)
	assert.Contains(t, r.History("greet"), "hi")
}

func TestUnknownTask(t *testing.T) {
	r, _ := newTestRunner(t, Options{})
	assert.True(t, errors.Is(r.Start(context.Background(), "nope"), ErrUnknownTask))
	_, err := r.Follow("nope")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestFollowReplaysHistoryThenLive(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "ticker", Commands: []string{"echo first; sleep 0.2; echo second; sleep 5"}})

	require.NoError(t, r.Start(context.Background(), "ticker"))
	require.Eventually(t, func() bool {
		return len(r.History("ticker")) >= 2
	}, 3*time.Second, 5*time.Millisecond)

	follow, err := r.Follow("ticker")
	require.NoError(t, err)
	defer follow.Close()

	var got []string
	timeout := time.After(3 * time.Second)
	for len(got) < 3 {
		select {
		case line := <-follow.Lines():
			got = append(got, line)
		case <-timeout:
			t.Fatalf("follow stalled at %v", got)
		}
	}
	assert.Equal(t, []string{"==> START: echo first; sleep 0.2; echo second; sleep 5", "first", "second"}, got)
	waitState(t, store, "ticker", state.Running)
}

func TestSetDefsKeepsStateAndDropsRemoved(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "a", Commands: []string{"true"}}, Def{Name: "b", Commands: []string{"true"}})
	require.NoError(t, r.Start(context.Background(), "a"))
	waitState(t, store, "a", state.Exited)

	r.SetDefs([]Def{{Name: "a", Commands: []string{"true"}}, {Name: "c", Commands: []string{"true"}}})
	snap := store.Snapshot()
	_, hasB := snap.Process(ID("b"))
	assert.False(t, hasB)
	a, _ := snap.Process(ID("a"))
	assert.Equal(t, state.Exited, a.State)

	var names []string
	for _, d := range r.Defs() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestBuildShellCommand(t *testing.T) {
	cmd := BuildShellCommand([]string{"export FOO=bar", " ", "source ~/.zshrc"}, []string{"echo $FOO", "echo done"})
	assert.Equal(t, "export FOO=bar; source ~/.zshrc; echo $FOO && echo done", cmd)
	assert.Equal(t, "", BuildShellCommand(nil, nil))
}

func TestFollowDeliversEveryLineToSlowReader(t *testing.T) {
	r, store := newTestRunner(t, Options{}, Def{Name: "burst", Commands: []string{"seq 1 20000"}})

	follow, err := r.Follow("burst")
	require.NoError(t, err)
	defer follow.Close()
	require.NoError(t, r.Start(context.Background(), "burst"))

	var got []string
	timeout := time.After(20 * time.Second)
	for len(got) < 20002 {
		select {
		case line := <-follow.Lines():
			got = append(got, line)
			if len(got)%256 == 0 {
				time.Sleep(2 * time.Millisecond)
			}
		case <-timeout:
			t.Fatalf("follow stalled after %d lines", len(got))
		}
	}

	assert.Equal(t, "==> START: seq 1 20000", got[0])
	for i := 1; i <= 20000; i++ {
		require.Equal(t, strconv.Itoa(i), got[i])
	}
	assert.Equal(t, "==> OK", got[20001])
	waitState(t, store, "burst", state.Exited)
}

func TestClosedFollowIsReleased(t *testing.T) {
	r, _ := newTestRunner(t, Options{}, Def{Name: "idle", Commands: []string{"true"}})

	follow, err := r.Follow("idle")
	require.NoError(t, err)
	require.NoError(t, follow.Close())

	code, err := follow.Wait()
	assert.Equal(t, 0, code)
	assert.NoError(t, err)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.tasks["idle"].subs) == 0
	}, time.Second, time.Millisecond)
}

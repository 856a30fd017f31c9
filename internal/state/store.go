package state

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConflict is returned when an exclusive action is already queued or
	// running for the same target.
	ErrConflict = errors.New("an action is already in flight for this target")

	ErrUnknownAction = errors.New("unknown action")
)

// missesBeforeRemoval is how many consecutive polls a container may be
// absent from before it is dropped.
const missesBeforeRemoval = 2

// LogView is the attached log as seen by the renderer.
type LogView struct {
	Target     string
	Generation uint64
	Lines      []string
	Ended      bool
	Err        string
}

func (l LogView) Attached() bool { return l.Target != "" }

// Snapshot is an immutable view of the store. Callers must not modify the
// slices it holds.
type Snapshot struct {
	Processes []Process
	Log       LogView
	Actions   []PendingAction
	Warning   string
	Context   string
	PollCount int
	LastPoll  time.Time
	Version   uint64
}

func (s *Snapshot) Process(id string) (Process, bool) {
	for _, p := range s.Processes {
		if p.ID == id {
			return p, true
		}
	}
	return Process{}, false
}

// InFlight returns the exclusive in-flight action for target, if any.
func (s *Snapshot) InFlight(target string) (PendingAction, bool) {
	for _, a := range s.Actions {
		if a.Target == target && a.State.InFlight() && a.Kind.Exclusive() {
			return a, true
		}
	}
	return PendingAction{}, false
}

type containerEntry struct {
	proc   Process
	misses int
}

// Store is safe for concurrent use. Writers serialise on a mutex and
// publish a fresh Snapshot; readers load the latest one without locking.
type Store struct {
	mu sync.Mutex

	containers map[string]*containerEntry
	tasks      map[string]Process

	log       *LogBuffer
	logTarget string
	logGen    uint64
	logEnded  bool
	logErr    string

	actions   []PendingAction
	warning   string
	context   string
	pollCount int
	lastPoll  time.Time
	version   uint64

	snap    atomic.Pointer[Snapshot]
	changed chan struct{}
}

func NewStore(logCapacity int) *Store {
	s := &Store{
		containers: make(map[string]*containerEntry),
		tasks:      make(map[string]Process),
		log:        NewLogBuffer(logCapacity),
		changed:    make(chan struct{}, 1),
	}
	s.snap.Store(&Snapshot{})
	return s
}

// Snapshot returns the latest published view. It never blocks on writers.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Changed receives a value after one or more writes since the last receive.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

// ApplyPollResult reconciles a fresh container listing. Containers missing
// from one poll are flagged; missing from two consecutive polls, removed.
func (s *Store) ApplyPollResult(procs []Process, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(procs))
	for _, p := range procs {
		seen[p.ID] = true
		p.Kind = KindContainer
		p.RefreshedAt = at
		p.PendingRemoval = false
		entry, ok := s.containers[p.ID]
		if !ok {
			entry = &containerEntry{proc: Process{ID: p.ID, State: Unknown}}
			s.containers[p.ID] = entry
		}
		entry.proc = p
		entry.misses = 0
	}

	for id, entry := range s.containers {
		if seen[id] {
			continue
		}
		entry.misses++
		if entry.misses >= missesBeforeRemoval {
			delete(s.containers, id)
			if s.logTarget == id {
				s.clearLogLocked()
			}
			continue
		}
		entry.proc.PendingRemoval = true
	}

	s.warning = ""
	s.pollCount++
	s.lastPoll = at
	s.publishLocked()
}

// ApplyPollFailure keeps the previous listing and records a warning that the
// next successful poll clears.
func (s *Store) ApplyPollFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		return
	}
	s.warning = err.Error()
	s.publishLocked()
}

func (s *Store) SetContext(desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.context == desc {
		return
	}
	s.context = desc
	s.publishLocked()
}

// SetTasks replaces the manual task set. Tasks that disappear lose their
// attached log.
func (s *Store) SetTasks(tasks []Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Process, len(tasks))
	for _, t := range tasks {
		t.Kind = KindTask
		next[t.ID] = t
	}
	if s.logTarget != "" {
		if _, wasTask := s.tasks[s.logTarget]; wasTask {
			if _, ok := next[s.logTarget]; !ok {
				s.clearLogLocked()
			}
		}
	}
	s.tasks = next
	s.publishLocked()
}

// ApplyTaskState updates one task. Unknown tasks are ignored.
func (s *Store) ApplyTaskState(p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[p.ID]; !ok {
		return
	}
	p.Kind = KindTask
	s.tasks[p.ID] = p
	s.publishLocked()
}

// BeginLog starts a fresh buffer for target and returns its generation.
// Appends tagged with any earlier generation are discarded from now on.
func (s *Store) BeginLog(target string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logGen++
	s.log.Reset()
	s.logTarget = target
	s.logEnded = false
	s.logErr = ""
	s.publishLocked()
	return s.logGen
}

// EndLog detaches gen if it is still current.
func (s *Store) EndLog(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.logGen {
		return
	}
	s.clearLogLocked()
	s.publishLocked()
}

// ApplyLogAppend appends lines to the current buffer. It reports false and
// drops the lines when gen is stale.
func (s *Store) ApplyLogAppend(gen uint64, lines []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.logGen || s.logTarget == "" {
		return false
	}
	if len(lines) == 0 {
		return true
	}
	s.log.Append(lines...)
	s.publishLocked()
	return true
}

// ApplyLogEnd marks the stream for gen as finished, with err if it failed.
func (s *Store) ApplyLogEnd(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.logGen || s.logTarget == "" {
		return
	}
	s.logEnded = true
	if err != nil {
		s.logErr = err.Error()
	}
	s.publishLocked()
}

func (s *Store) clearLogLocked() {
	s.logGen++
	s.logTarget = ""
	s.logEnded = false
	s.logErr = ""
	s.log.Reset()
}

// ReserveAction records a as queued. Exclusive kinds fail with ErrConflict
// when the target already has one queued or running; the existing action is
// left untouched.
func (s *Store) ReserveAction(a PendingAction) (PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Kind.Exclusive() {
		for _, existing := range s.actions {
			if existing.Target == a.Target && existing.Kind.Exclusive() && existing.State.InFlight() {
				return existing, ErrConflict
			}
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	a.State = ActionQueued
	s.actions = append(s.actions, a)
	s.publishLocked()
	return a, nil
}

// ApplyActionTransition moves an action to next. Terminal states stamp
// FinishedAt; reason and output replace earlier values only when non-empty.
func (s *Store) ApplyActionTransition(id uuid.UUID, next ActionState, reason, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.actions {
		a := &s.actions[i]
		if a.ID != id {
			continue
		}
		if !a.State.InFlight() {
			return nil
		}
		a.State = next
		if reason != "" {
			a.Reason = reason
		}
		if output != "" {
			a.Output = output
		}
		if !next.InFlight() {
			a.FinishedAt = time.Now()
		}
		s.publishLocked()
		return nil
	}
	return ErrUnknownAction
}

// DrainCompleted removes and returns actions that reached a terminal state.
func (s *Store) DrainCompleted() []PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var done []PendingAction
	kept := s.actions[:0]
	for _, a := range s.actions {
		if a.State.InFlight() {
			kept = append(kept, a)
			continue
		}
		done = append(done, a)
	}
	if len(done) == 0 {
		return nil
	}
	clear(s.actions[len(kept):])
	s.actions = kept
	s.publishLocked()
	return done
}

func (s *Store) publishLocked() {
	s.version++

	procs := make([]Process, 0, len(s.containers)+len(s.tasks))
	for _, e := range s.containers {
		procs = append(procs, e.proc)
	}
	slices.SortFunc(procs, byName)
	tasks := make([]Process, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	slices.SortFunc(tasks, byName)
	procs = append(procs, tasks...)

	snap := &Snapshot{
		Processes: procs,
		Actions:   slices.Clone(s.actions),
		Warning:   s.warning,
		Context:   s.context,
		PollCount: s.pollCount,
		LastPoll:  s.lastPoll,
		Version:   s.version,
	}
	if s.logTarget != "" {
		snap.Log = LogView{
			Target:     s.logTarget,
			Generation: s.logGen,
			Lines:      s.log.Lines(),
			Ended:      s.logEnded,
			Err:        s.logErr,
		}
	}
	s.snap.Store(snap)

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func byName(a, b Process) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

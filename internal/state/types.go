// Package state holds the dashboard's single source of truth: the tracked
// processes, the attached log buffer and in-flight actions. Readers get an
// immutable Snapshot; writers go through Store methods.
package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	KindContainer Kind = iota
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindTask:
		return "task"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Lifecycle int

const (
	Unknown Lifecycle = iota
	Created
	Running
	Paused
	Restarting
	Exited
	Removing
)

var lifecycleNames = [...]string{"unknown", "created", "running", "paused", "restarting", "exited", "removing"}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) && l >= 0 {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("Lifecycle(%d)", int(l))
}

// ParseLifecycle maps the container tool's state word onto a Lifecycle.
// Anything unrecognised is Unknown.
func ParseLifecycle(s string) Lifecycle {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created":
		return Created
	case "running", "up":
		return Running
	case "paused":
		return Paused
	case "restarting":
		return Restarting
	case "exited", "dead":
		return Exited
	case "removing":
		return Removing
	default:
		return Unknown
	}
}

type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionStop
	ActionRestart
	ActionPause
	ActionUnpause
	ActionKill
	ActionRemove
	ActionReset
	ActionInspect
	ActionComposeUp
)

var actionNames = [...]string{"start", "stop", "restart", "pause", "unpause", "kill", "remove", "reset", "inspect", "compose-up"}

func (a ActionKind) String() string {
	if int(a) < len(actionNames) && a >= 0 {
		return actionNames[a]
	}
	return fmt.Sprintf("ActionKind(%d)", int(a))
}

// Exclusive reports whether the action takes the per-target lock.
func (a ActionKind) Exclusive() bool {
	return a != ActionInspect
}

// Destructive reports whether callers must confirm before submitting.
// ComposeUp is only destructive when it recreates a running stack, which the
// caller decides.
func (a ActionKind) Destructive() bool {
	return a == ActionRemove || a == ActionReset
}

type ActionState int

const (
	ActionQueued ActionState = iota
	ActionRunning
	ActionSucceeded
	ActionFailed
)

func (s ActionState) String() string {
	switch s {
	case ActionQueued:
		return "queued"
	case ActionRunning:
		return "running"
	case ActionSucceeded:
		return "succeeded"
	case ActionFailed:
		return "failed"
	default:
		return fmt.Sprintf("ActionState(%d)", int(s))
	}
}

func (s ActionState) InFlight() bool {
	return s == ActionQueued || s == ActionRunning
}

// Port is one published or exposed port mapping. Public is zero when the
// port is not published on the host.
type Port struct {
	IP      string
	Private uint16
	Public  uint16
	Proto   string
}

func (p Port) String() string {
	if p.Public == 0 {
		return fmt.Sprintf("%d/%s", p.Private, p.Proto)
	}
	ip := p.IP
	if ip == "" {
		ip = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d->%d/%s", ip, p.Public, p.Private, p.Proto)
}

// Process is a ManagedProcess: a container or a manual task.
type Process struct {
	ID          string
	Name        string
	Kind        Kind
	State       Lifecycle
	Status      string
	Image       string
	Ports       []Port
	ExitCode    int
	RefreshedAt time.Time

	// PendingRemoval is set after the process was missing from one poll.
	PendingRemoval bool
}

// PublishedTCP returns the ports reachable from the host, in listing order.
func (p Process) PublishedTCP() []Port {
	var out []Port
	for _, port := range p.Ports {
		if port.Public != 0 && (port.Proto == "" || port.Proto == "tcp") {
			out = append(out, port)
		}
	}
	return out
}

type PendingAction struct {
	ID          uuid.UUID
	Target      string
	TargetName  string
	Kind        ActionKind
	State       ActionState
	Reason      string
	Output      string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

func (a PendingAction) Label() string {
	name := a.TargetName
	if name == "" {
		name = a.Target
	}
	return fmt.Sprintf("%s %s", a.Kind, name)
}

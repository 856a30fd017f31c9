// Package docker translates dashboard operations into docker CLI
// invocations and parses what comes back.
package docker

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"dockdash/internal/execx"
	"dockdash/internal/state"
)

type Options struct {
	Bin     string
	Profile string
	LogTail int

	// ComposeRunner runs compose commands, which may pull images and
	// outlast the per-command timeout. Defaults to the main runner.
	ComposeRunner execx.Runner
}

// Client runs docker through an execx.Runner. It holds no state of its own
// and is safe for concurrent use.
type Client struct {
	runner  execx.Runner
	compose execx.Runner
	bin     string
	profile string
	tail    int
	log     *zap.Logger
}

func New(runner execx.Runner, opts Options, log *zap.Logger) *Client {
	if opts.Bin == "" {
		opts.Bin = "docker"
	}
	if opts.Profile == "" {
		opts.Profile = "local"
	}
	if opts.LogTail <= 0 {
		opts.LogTail = 200
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ComposeRunner == nil {
		opts.ComposeRunner = runner
	}
	return &Client{
		runner:  runner,
		compose: opts.ComposeRunner,
		bin:     opts.Bin,
		profile: opts.Profile,
		tail:    opts.LogTail,
		log:     log,
	}
}

func (c *Client) Bin() string     { return c.bin }
func (c *Client) Profile() string { return c.profile }

// ComposeTarget is the action target id used for stack-wide operations.
func (c *Client) ComposeTarget() string { return "compose:" + c.profile }

// ListProcesses returns every container, running or not, sorted by name.
// Ports come from one batched inspect; if that fails the containers are
// still returned without ports.
func (c *Client) ListProcesses(ctx context.Context) ([]state.Process, error) {
	res, err := c.runner.Run(ctx, c.bin, "ps", "-a", "--no-trunc", "--format", "{{json .}}")
	if err != nil {
		return nil, err
	}
	if err := res.Err(c.bin + " ps"); err != nil {
		return nil, err
	}
	procs, err := parsePS(res.Stdout)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		return procs, nil
	}

	args := make([]string, 0, len(procs)+1)
	args = append(args, "inspect")
	for _, p := range procs {
		args = append(args, p.ID)
	}
	inspected, err := c.runner.Run(ctx, c.bin, args...)
	if err != nil {
		c.log.Warn("batched inspect failed", zap.Error(err))
		return procs, nil
	}
	// A container removed between ps and inspect makes inspect exit non-zero
	// while still printing the others.
	ports := parseInspectPorts(inspected.Stdout)
	for i := range procs {
		procs[i].Ports = ports[procs[i].ID]
	}
	return procs, nil
}

// Inspect returns the formatted inspect text for one container.
func (c *Client) Inspect(ctx context.Context, id string) (string, error) {
	out, err := c.inspectRaw(ctx, id)
	if err != nil {
		return "", err
	}
	return FormatInspect(out), nil
}

func (c *Client) inspectRaw(ctx context.Context, id string) ([]byte, error) {
	res, err := c.runner.Run(ctx, c.bin, "inspect", id)
	if err != nil {
		return nil, err
	}
	if err := res.Err(c.bin + " inspect"); err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// ActionArgs returns the docker arguments for a single-command lifecycle
// action. Reset, Inspect and ComposeUp are multi-step and have none.
func ActionArgs(kind state.ActionKind, id string) ([]string, bool) {
	switch kind {
	case state.ActionStart:
		return []string{"start", id}, true
	case state.ActionStop:
		return []string{"stop", id}, true
	case state.ActionRestart:
		return []string{"restart", id}, true
	case state.ActionPause:
		return []string{"pause", id}, true
	case state.ActionUnpause:
		return []string{"unpause", id}, true
	case state.ActionKill:
		return []string{"kill", id}, true
	case state.ActionRemove:
		return []string{"rm", "-f", id}, true
	default:
		return nil, false
	}
}

// Action runs a single-command lifecycle action against id.
func (c *Client) Action(ctx context.Context, kind state.ActionKind, id string) error {
	args, ok := ActionArgs(kind, id)
	if !ok {
		return fmt.Errorf("%s is not a single docker command", kind)
	}
	return c.run(ctx, args...)
}

// Reset stops and removes the container, then removes each named volume it
// mounted. It aborts on the first failing step. Progress goes to step.
func (c *Client) Reset(ctx context.Context, id string, step func(string)) error {
	step("Inspecting " + shortID(id) + "...")
	raw, err := c.inspectRaw(ctx, id)
	if err != nil {
		return err
	}
	volumes := namedVolumes(raw)

	step("Stopping " + shortID(id) + "...")
	if err := c.run(ctx, "stop", id); err != nil {
		return err
	}
	step("Removing container " + shortID(id) + "...")
	if err := c.run(ctx, "rm", "-f", id); err != nil {
		return err
	}
	for _, v := range volumes {
		step("Removing volume " + v + "...")
		if err := c.run(ctx, "volume", "rm", v); err != nil {
			return err
		}
	}
	step("Reset complete for " + shortID(id))
	return nil
}

// ComposeUp brings the profile's stack up. With restart set it restarts
// the stack instead, falling back to up when restart fails.
func (c *Client) ComposeUp(ctx context.Context, restart bool, step func(string)) error {
	if restart {
		step("compose restart (" + c.profile + ")")
		err := c.runCompose(ctx, "restart")
		if err == nil {
			return nil
		}
		step("restart failed: " + execx.Reason(err) + "; trying up -d")
	}
	step("compose up -d (" + c.profile + ")")
	return c.runCompose(ctx, "up", "-d")
}

func (c *Client) runCompose(ctx context.Context, args ...string) error {
	full := append([]string{"compose", "--profile", c.profile}, args...)
	res, err := c.compose.Run(ctx, c.bin, full...)
	if err != nil {
		return err
	}
	return res.Err(c.bin + " compose")
}

// OpenLogs follows a container's combined output starting from the last
// LogTail lines.
func (c *Client) OpenLogs(ctx context.Context, id string) (execx.LineStream, error) {
	return c.runner.Stream(ctx, c.bin, "logs", "-f", "--tail", strconv.Itoa(c.tail), id)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	res, err := c.runner.Run(ctx, c.bin, args...)
	if err != nil {
		return err
	}
	return res.Err(c.bin + " " + args[0])
}

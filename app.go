package main

import (
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"dockdash/internal/action"
	"dockdash/internal/config"
	"dockdash/internal/docker"
	"dockdash/internal/execx"
	"dockdash/internal/logstream"
	"dockdash/internal/poller"
	"dockdash/internal/state"
	"dockdash/internal/tasks"
)

const detectTimeout = 5 * time.Second

// app owns the workers behind the dashboard.
type app struct {
	cfg     config.Config
	opts    config.Options
	log     *zap.Logger
	store   *state.Store
	docker  *docker.Client
	meta    docker.Meta
	tasks   *tasks.Runner
	poller  *poller.Poller
	logs    *logstream.Streamer
	actions *action.Executor
}

// newApp wires the workers. The only fatal condition is a docker binary
// that cannot be found; everything else surfaces as a warning later.
func newApp(ctx context.Context, cfg config.Config, opts config.Options, log *zap.Logger) (*app, error) {
	if _, err := exec.LookPath(cfg.DockerBin); err != nil {
		return nil, &execx.SpawnError{Name: cfg.DockerBin, Err: err}
	}

	runner := &execx.Executor{Dir: cfg.Root, Timeout: cfg.CommandTimeout()}
	client := docker.New(runner, docker.Options{
		Bin:           cfg.DockerBin,
		Profile:       cfg.Profile,
		LogTail:       cfg.LogTail,
		ComposeRunner: &execx.Executor{Dir: cfg.Root},
	}, log.Named("docker"))

	store := state.NewStore(cfg.MaxLogLines)
	taskRunner := tasks.New(ctx, &execx.Executor{Dir: cfg.Root}, tasks.Options{
		Shell:        cfg.Shell,
		Init:         cfg.Init,
		HistoryLines: cfg.MaxLogLines,
	}, store, log.Named("tasks"))
	taskRunner.SetDefs(cfg.TaskDefs())

	poll := poller.New(client, store, cfg.RefreshInterval(), log.Named("poller"))
	opener := logstream.OpenerFunc(func(ctx context.Context, p state.Process) (execx.LineStream, error) {
		if p.Kind == state.KindTask {
			return taskRunner.Follow(p.Name)
		}
		return client.OpenLogs(ctx, p.ID)
	})

	a := &app{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		store:   store,
		docker:  client,
		tasks:   taskRunner,
		poller:  poll,
		logs:    logstream.New(opener, store, log.Named("logs")),
		actions: action.New(ctx, client, taskRunner, store, poll, log.Named("action")),
	}

	detectCtx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	a.meta = docker.Detect(detectCtx, runner, cfg.DockerBin)
	store.SetContext(a.meta.String())
	log.Info("docker context", zap.String("backend", a.meta.Backend), zap.String("context", a.meta.Context),
		zap.String("host", a.meta.Host), zap.Bool("available", a.meta.Available))
	return a, nil
}

// reloadTasks re-reads the configuration and replaces the task set. Other
// settings need a restart.
func (a *app) reloadTasks() {
	opts := a.opts
	opts.Root = a.cfg.Root
	opts.Profile = a.cfg.Profile
	cfg, err := config.Load(opts)
	if err != nil {
		a.log.Warn("config reload", zap.Error(err))
		return
	}
	defs := cfg.TaskDefs()
	a.tasks.SetDefs(defs)
	a.log.Info("tasks reloaded", zap.Int("count", len(defs)))
}

func (a *app) deps(ctx context.Context, openURL func(string) error) deps {
	return deps{
		ctx:     ctx,
		store:   a.store,
		actions: a.actions,
		logs:    a.logs,
		host:    a.meta.Host,
		openURL: openURL,
	}
}

// shutdown stops the log stream and every task, then cancels and waits for
// in-flight actions.
func (a *app) shutdown(cancel context.CancelFunc) {
	a.logs.Detach()
	a.tasks.StopAll()
	cancel()
	a.actions.Wait()
	a.logs.Wait()
}

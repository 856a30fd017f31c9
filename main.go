package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dockdash/internal/config"
	"dockdash/internal/logging"
)

var version = "dev"

type rootOptions struct {
	config  string
	theme   string
	profile string
	debug   bool
}

func (o rootOptions) load() (config.Config, error) {
	return config.Load(config.Options{Path: o.config, Profile: o.profile, Theme: o.theme})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dockdash: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	root := &cobra.Command{
		Use:           "dockdash",
		Short:         "Terminal dashboard for docker containers and project tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(opts)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.config, "config", "c", "", "path to config file (default <project root>/"+config.DefaultFile+")")
	flags.StringVarP(&opts.theme, "theme", "t", "", "theme override: auto, light, or dark")
	flags.StringVarP(&opts.profile, "profile", "p", "", "compose profile (overrides DOCKER_PROFILE)")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")

	root.AddCommand(newInitCmd(&opts), newPsCmd(&opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dockdash %s\n", version)
		},
	}
}

func runDashboard(opts rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogFile, opts.debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting", zap.String("version", version), zap.String("root", cfg.Root),
		zap.String("profile", cfg.Profile), zap.Strings("env_files", cfg.EnvFiles))

	applyTheme(cfg.Theme)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, config.Options{Path: opts.config, Theme: opts.theme}, log)
	if err != nil {
		return err
	}

	// The browser helper prints to the terminal the dashboard is drawing on.
	browser.Stdout, browser.Stderr = io.Discard, io.Discard
	program := tea.NewProgram(newModel(cfg, a.deps(ctx, browser.OpenURL)), tea.WithAltScreen(), tea.WithMouseCellMotion())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.poller.Run(gctx) })
	g.Go(func() error {
		// Hot reload is optional; the dashboard keeps running without it.
		if err := config.Watch(gctx, cfg.WatchPaths(), config.DefaultDebounce, log.Named("config"), a.reloadTasks); err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
		return nil
	})

	_, runErr := program.Run()
	a.shutdown(cancel)
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	log.Info("stopped")
	return runErr
}

func applyTheme(theme string) {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	default:
		if os.Getenv("TMUX") != "" {
			if dark, ok := detectDarkBackgroundFromEnv(); ok {
				lipgloss.SetHasDarkBackground(dark)
			}
		}
	}
}

// detectDarkBackgroundFromEnv reads the background index from COLORFGBG,
// which tmux does not answer background queries for.
func detectDarkBackgroundFromEnv() (bool, bool) {
	value := strings.TrimSpace(os.Getenv("COLORFGBG"))
	if value == "" {
		return false, false
	}
	parts := strings.Split(value, ";")
	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" || strings.EqualFold(last, "default") {
		return false, false
	}
	bg, err := strconv.Atoi(last)
	if err != nil {
		return false, false
	}
	return bg <= 6, true
}

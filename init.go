package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dockdash/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter " + config.DefaultFile + " in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.config
			if path == "" {
				path = config.DefaultFile
			}
			if err := runInit(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s. Edit it, then run dockdash.\n", path)
			return nil
		},
	}
}

func runInit(path string) error {
	if path == "" {
		path = config.DefaultFile
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	title := "dockdash"
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		base := filepath.Base(abs)
		if base != "" && base != "." && base != string(filepath.Separator) {
			title = base
		}
	}

	return os.WriteFile(path, []byte(defaultConfigTemplate(title)), 0o644)
}

func defaultConfigTemplate(title string) string {
	if strings.TrimSpace(title) == "" {
		title = "dockdash"
	}

	return fmt.Sprintf(`title: %q
profile: local
refresh_ms: 1000
max_log_lines: 1200
sidebar_width: 40

# Started with the compose stack. Set to false to skip the prompt.
auto_compose_up: true
stack_containers:
  - supabase-db
  - supabase-storage

# Prefixed to every task command.
# init: source .venv/bin/activate

tasks:
  - name: migrate
    cmd: npm run db:migrate

  - name: seed
    cmd:
      - npm run db:migrate
      - npm run db:seed
`, title)
}

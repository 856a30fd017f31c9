package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dockdash/internal/docker"
	"dockdash/internal/execx"
	"dockdash/internal/poller"
	"dockdash/internal/state"
)

func newPsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "Print the container listing once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			runner := &execx.Executor{Dir: cfg.Root, Timeout: cfg.CommandTimeout()}
			client := docker.New(runner, docker.Options{Bin: cfg.DockerBin, Profile: cfg.Profile}, zap.NewNop())
			return runPs(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

// runPs lists through the same path as the poller and renders a table.
func runPs(ctx context.Context, lister poller.Lister, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	procs, err := lister.ListProcesses(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, renderPsTable(procs))
	return err
}

func renderPsTable(procs []state.Process) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(sectionStyle).
		Headers("NAME", "STATE", "STATUS", "IMAGE", "ENDPOINT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle.Padding(0, 1)
			}
			if col == 1 && row >= 0 && row < len(procs) {
				return lifecycleStyle(procs[row].State).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, p := range procs {
		endpoint := ""
		if url, err := docker.Endpoint(p, -1, ""); err == nil {
			endpoint = url
		}
		t.Row(p.Name, p.State.String(), p.Status, p.Image, endpoint)
	}
	if len(procs) == 0 {
		return "no containers"
	}
	return t.String()
}

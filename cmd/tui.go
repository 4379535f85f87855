package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ampyr/internal/ui"
	"github.com/urfave/cli/v3"
)

// tuiCommand launches the interactive token inspector
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse cached tokens interactively",
		Flags:  []cli.Flag{configFlag()},
		Action: r.TUI,
	}
}

// TUI runs the bubbletea token inspector over the configured cache backend.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	model := ui.NewModel(r.store)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

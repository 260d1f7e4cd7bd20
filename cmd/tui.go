package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
	"github.com/desertthunder/rostersync/internal/tasks"
	"github.com/desertthunder/rostersync/internal/ui"
)

const defaultTUILogFile = "rostersync-tui.log"

// TUI launches the interactive terminal UI for picking and syncing lists.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Log.File
	if path == "" {
		path = defaultTUILogFile
	}
	fileLogger, f, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.sourceRegistry(), r.tuiSync, r.config.Sync.ListPrefix)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiSync runs a sync for the TUI and notifies the administrator when it ends.
func (r *Runner) tuiSync(ctx context.Context, names []string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error) {
	run, err := r.newEngine(names).Run(ctx, progress)
	if _, nerr := r.notifier().Notify(context.WithoutCancel(ctx), run); nerr != nil {
		r.logger.Error("notification failed", "error", nerr)
	}
	return run, err
}

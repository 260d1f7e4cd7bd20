package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/formatter"
	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/repositories"
	"github.com/desertthunder/rostersync/internal/shared"
)

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		switch models.RunStatus(status) {
		case models.RunRunning, models.RunCompleted, models.RunFailed:
			criteria["status"] = status
		default:
			return fmt.Errorf("%w: status %q", shared.ErrInvalidFlag, status)
		}
	}
	if cmd.IsSet("dry-run") {
		criteria["dry_run"] = cmd.Bool("dry-run")
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		exports := make([]formatter.RunExport, 0, len(runs))
		for _, run := range runs {
			exports = append(exports, formatter.NewRunExport(run))
		}
		return r.writeJSON(exports, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	formatter.RunsTable(r.output, runs)
	return nil
}

// HistoryShow prints one run with its list reports.
//
// The run is selected by sequence number, by ID, or with "latest".
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	run, err := resolveRun(repo, cmd.StringArg("run"))
	if err != nil {
		return err
	}

	return formatter.Render(r.output, run, format)
}

// HistoryDelete hides a recorded run from history. The row is kept in the database.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	run, err := resolveRun(repo, cmd.StringArg("run"))
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID()); err != nil {
		return err
	}

	r.logger.Info("run deleted", "id", run.ID(), "sequence", run.Sequence())
	return r.writePlain("Deleted run #%d (%s)\n", run.Sequence(), run.ID())
}

// resolveRun selects a run by sequence number, by ID, or with "latest".
func resolveRun(repo *repositories.RunRepository, key string) (*models.SyncRun, error) {
	var (
		run *models.SyncRun
		err error
	)
	switch {
	case key == "" || key == "latest":
		run, err = repo.Latest()
	case isSequence(key):
		seq, _ := strconv.Atoi(key)
		run, err = repo.GetBySequence(seq)
	default:
		run, err = repo.Get(key)
	}
	if errors.Is(err, shared.ErrRunNotFound) {
		return nil, fmt.Errorf("%w (see 'rostersync history list')", err)
	}
	return run, err
}

func isSequence(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

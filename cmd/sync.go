package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/formatter"
	"github.com/desertthunder/rostersync/internal/shared"
)

func checkFormat(format string) error {
	f := strings.ToLower(format)
	if f == "" || f == "md" || slices.Contains(formatter.Formats, f) {
		return nil
	}
	return fmt.Errorf("%w: format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(formatter.Formats, ", "))
}

// SyncRun reconciles the selected source lists into the destination, prints the run report and
// emails the administrator.
//
// The report is printed even when the run aborts; the fatal error is then returned so the
// process exits non-zero.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	lists := cmd.StringSlice("list")
	r.logger.Info("starting sync", "lists", len(lists), "folder", r.config.Sync.FolderName)

	run, runErr := r.newEngine(lists).Run(ctx, nil)

	if !cmd.Bool("no-notify") {
		// The run context may already be canceled; the admin still hears about it.
		if _, err := r.notifier().Notify(context.WithoutCancel(ctx), run); err != nil {
			r.logger.Error("notification failed", "error", err)
		}
	}

	if err := formatter.Render(r.output, run, format); err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(run, path, format); err != nil {
			r.logger.Warn("failed to write report file", "path", path, "error", err)
		} else {
			r.logger.Info("report written", "path", path)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%s: %w", run.ErrorType(), runErr)
	}
	return nil
}

// SyncDiff prints what a sync of the selected lists would change.
func (r *Runner) SyncDiff(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	diff, err := r.newEngine(cmd.StringSlice("list")).Diff(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", diff.Run.ErrorType(), err)
	}

	return formatter.RenderDiff(r.output, diff, format)
}

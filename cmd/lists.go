package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/formatter"
	"github.com/desertthunder/rostersync/internal/models"
)

type folderLister interface {
	Folders(ctx context.Context) ([]models.Folder, error)
}

// ListsSource prints the lists of the source registry.
func (r *Runner) ListsSource(ctx context.Context, cmd *cli.Command) error {
	source := r.sourceRegistry()
	if err := source.Authenticate(ctx); err != nil {
		return err
	}

	lists, err := source.FetchLists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("top-level") {
		top := lists[:0:0]
		for _, l := range lists {
			if l.TopLevel() {
				top = append(top, l)
			}
		}
		lists = top
	}

	r.logger.Debug("fetched source lists", "count", len(lists))
	if cmd.Bool("json") {
		return r.writeJSON(lists, true)
	}

	formatter.SourceListsTable(r.output, lists)
	return nil
}

// ListsDestination prints the destination lists with their folders.
//
// Folder names are shown when the destination can list folders; a folder lookup failure only
// degrades the output to folder IDs.
func (r *Runner) ListsDestination(ctx context.Context, cmd *cli.Command) error {
	dest := r.destinationService()

	lists, err := dest.Lists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch %s lists: %w", dest.Name(), err)
	}

	var folders []models.Folder
	if fl, ok := dest.(folderLister); ok {
		if folders, err = fl.Folders(ctx); err != nil {
			r.logger.Warn("failed to fetch folders", "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(lists, true)
	}

	formatter.DestinationListsTable(r.output, lists, folders)
	return nil
}

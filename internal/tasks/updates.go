package tasks

import (
	"fmt"

	"github.com/desertthunder/rostersync/internal/models"
)

// ProgressUpdate represents a progress event during a sync.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current list number, or batch number within a list
	Total   int    // Total lists, or total batches within a list
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authenticate Phase = iota
	FetchLists
	FetchMembers
	ResolveFolder
	ResolveList
	Snapshot
	Upsert
	AddMembers
	RemoveMembers
	ListDone
	Complete
)

func (p Phase) String() string {
	switch p {
	case Authenticate:
		return "authenticate"
	case FetchLists:
		return "fetch_lists"
	case FetchMembers:
		return "fetch_members"
	case ResolveFolder:
		return "resolve_folder"
	case ResolveList:
		return "resolve_list"
	case Snapshot:
		return "snapshot"
	case Upsert:
		return "upsert"
	case AddMembers:
		return "add_members"
	case RemoveMembers:
		return "remove_members"
	case ListDone:
		return "list_done"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func authenticateUpdate(source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Authenticating with %s...", source),
	}
}

func fetchListsUpdate(source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching lists from %s...", source),
	}
}

func foundListsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d top-level lists", total),
	}
}

func fetchMembersUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMembers,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching members of %s...", step, total, name),
	}
}

func resolveFolderUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveFolder,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up folder %q...", name),
	}
}

func resolveListUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving list %s...", step, total, name),
	}
}

func snapshotUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Snapshot,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading current members of %s...", step, total, name),
	}
}

func upsertUpdate(step, total int, name string, contacts int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Upsert,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Upserting %d contacts for %s...", step, total, contacts, name),
	}
}

func addMembersUpdate(step, total int, name string, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddMembers,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d contacts to %s...", step, total, n, name),
	}
}

func removeMembersUpdate(step, total int, name string, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveMembers,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing %d contacts from %s...", step, total, n, name),
	}
}

func listDoneUpdate(step, total int, report models.ReconciliationReport) ProgressUpdate {
	var msg string
	switch report.Status {
	case models.ListFailed:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, report.ListName, report.Error)
	case models.ListSkipped:
		msg = fmt.Sprintf("[%d/%d] - %s: no members, skipped", step, total, report.ListName)
	default:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (+%d -%d =%d, %d total)",
			step, total, report.ListName, report.Added, report.Removed, report.InBoth, report.TotalAfter)
	}
	return ProgressUpdate{
		Phase:   ListDone,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    report,
	}
}

func completeUpdate(run *models.SyncRun) ProgressUpdate {
	s := run.Summary()
	return ProgressUpdate{
		Phase:   Complete,
		Step:    s.TotalLists,
		Total:   s.TotalLists,
		Message: fmt.Sprintf("Sync %s: %d synced, %d failed", run.Status(), s.SyncedCount, s.FailedCount),
		Data:    run,
	}
}

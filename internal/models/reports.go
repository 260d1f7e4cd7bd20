package models

// ListStatus is the outcome of reconciling a single list.
type ListStatus string

const (
	ListSynced  ListStatus = "synced"
	ListSkipped ListStatus = "skipped" // no members in the source list
	ListFailed  ListStatus = "failed"
	ListPlanned ListStatus = "planned" // dry run, nothing applied
)

// ReconciliationReport summarizes one list's reconciliation.
//
// Added, Removed and InBoth are the planned delta sizes; TotalAfter is current - removed + added.
// The failure counters describe how much of that delta could not be applied.
type ReconciliationReport struct {
	ListName     string     `json:"listName"`
	ListID       int64      `json:"listId"`
	SourceListID string     `json:"sourceListId"`
	Status       ListStatus `json:"status"`
	Added        int        `json:"added"`
	Removed      int        `json:"removed"`
	InBoth       int        `json:"inBoth"`
	TotalAfter   int        `json:"totalAfter"`

	UpsertsFailed       int    `json:"upsertsFailed"`
	AlreadyPresent      int    `json:"alreadyPresent"`
	AddBatchesFailed    int    `json:"addBatchesFailed"`
	RemoveBatchesFailed int    `json:"removeBatchesFailed"`
	Error               string `json:"error,omitempty"`
}

// Failed reports whether the list counts against the run.
func (r ReconciliationReport) Failed() bool { return r.Status == ListFailed }

// SyncSummary counts list outcomes for a run.
type SyncSummary struct {
	TotalLists  int `json:"totalLists"`
	SyncedCount int `json:"syncedCount"`
	FailedCount int `json:"failedCount"`
}

// Summarize counts the reports. Skipped and planned lists count as synced.
func Summarize(reports []ReconciliationReport) SyncSummary {
	s := SyncSummary{TotalLists: len(reports)}
	for _, r := range reports {
		if r.Failed() {
			s.FailedCount++
		} else {
			s.SyncedCount++
		}
	}
	return s
}

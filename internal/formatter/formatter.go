// package formatter provides functions to export sync runs and diffs to various formats (CSV, Markdown, JSON, plain text, tables)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
	"github.com/desertthunder/rostersync/internal/tasks"
)

// Format names accepted by [Render] and [RenderDiff].
const (
	FormatTable    = "table"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatText, FormatMarkdown, FormatCSV, FormatJSON}

const timeLayout = "2006-01-02 15:04:05"

// RunExport is the JSON shape of a run.
type RunExport struct {
	ID           string                        `json:"id,omitempty"`
	Sequence     int                           `json:"sequence,omitempty"`
	Status       models.RunStatus              `json:"status"`
	DryRun       bool                          `json:"dryRun"`
	StartedAt    time.Time                     `json:"startedAt"`
	FinishedAt   *time.Time                    `json:"finishedAt,omitempty"`
	Duration     string                        `json:"duration"`
	Summary      models.SyncSummary            `json:"summary"`
	ErrorType    string                        `json:"errorType,omitempty"`
	ErrorMessage string                        `json:"errorMessage,omitempty"`
	Reports      []models.ReconciliationReport `json:"reports"`
}

// NewRunExport converts a run to its exported form.
func NewRunExport(run *models.SyncRun) RunExport {
	reports := run.Reports()
	if reports == nil {
		reports = []models.ReconciliationReport{}
	}
	return RunExport{
		ID:           run.ID(),
		Sequence:     run.Sequence(),
		Status:       run.Status(),
		DryRun:       run.DryRun(),
		StartedAt:    run.StartedAt(),
		FinishedAt:   run.FinishedAt(),
		Duration:     FormatDuration(run.Duration()),
		Summary:      run.Summary(),
		ErrorType:    run.ErrorType(),
		ErrorMessage: run.ErrorMessage(),
		Reports:      reports,
	}
}

// FormatDuration renders d rounded to the second, or to the millisecond under one second.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// ExportToCSV converts a run's reports to CSV format with one row per list
func ExportToCSV(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{
		"List", "List ID", "Status", "Added", "Removed", "In Both", "Total After",
		"Upserts Failed", "Add Batches Failed", "Remove Batches Failed", "Error",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range run.Reports() {
		record := []string{
			r.ListName,
			listID(r.ListID),
			string(r.Status),
			strconv.Itoa(r.Added),
			strconv.Itoa(r.Removed),
			strconv.Itoa(r.InBoth),
			strconv.Itoa(r.TotalAfter),
			strconv.Itoa(r.UpsertsFailed),
			strconv.Itoa(r.AddBatchesFailed),
			strconv.Itoa(r.RemoveBatchesFailed),
			r.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a run to a Markdown report with a per-list table
func ExportToMarkdown(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title(run)))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", run.Status()))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", run.StartedAt().Format(timeLayout)))
	if run.FinishedAt() != nil {
		buf.WriteString(fmt.Sprintf("**Finished**: %s\n", run.FinishedAt().Format(timeLayout)))
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n", FormatDuration(run.Duration())))
	}
	if run.ErrorType() != "" {
		buf.WriteString(fmt.Sprintf("**Error**: %s: %s\n", run.ErrorType(), run.ErrorMessage()))
	}

	s := run.Summary()
	buf.WriteString("\n## Summary\n\n")
	buf.WriteString(fmt.Sprintf("- Total lists: %d\n", s.TotalLists))
	buf.WriteString(fmt.Sprintf("- Synced: %d\n", s.SyncedCount))
	buf.WriteString(fmt.Sprintf("- Failed: %d\n", s.FailedCount))

	if len(run.Reports()) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Lists\n\n")
	buf.WriteString("| List | Status | Added | Removed | In Both | Total After |\n")
	buf.WriteString("|------|--------|------:|--------:|--------:|------------:|\n")
	for _, r := range run.Reports() {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d |\n",
			escapeCell(r.ListName), statusLabel(r), r.Added, r.Removed, r.InBoth, r.TotalAfter))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a run to plain text format
func ExportToText(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", title(run)))
	buf.WriteString(fmt.Sprintf("Status: %s\n", run.Status()))
	buf.WriteString(fmt.Sprintf("Started: %s\n", run.StartedAt().Format(timeLayout)))
	if run.FinishedAt() != nil {
		buf.WriteString(fmt.Sprintf("Finished: %s\n", run.FinishedAt().Format(timeLayout)))
		buf.WriteString(fmt.Sprintf("Duration: %s\n", FormatDuration(run.Duration())))
	}
	if run.ErrorType() != "" {
		buf.WriteString(fmt.Sprintf("Error: %s: %s\n", run.ErrorType(), run.ErrorMessage()))
	}

	s := run.Summary()
	buf.WriteString(fmt.Sprintf("Lists: %d total, %d synced, %d failed\n", s.TotalLists, s.SyncedCount, s.FailedCount))

	if len(run.Reports()) > 0 {
		buf.WriteString("\n")
	}
	for i, r := range run.Reports() {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, ReportLine(r)))
	}

	return buf.Bytes(), nil
}

// ReportLine renders one report on a single line.
func ReportLine(r models.ReconciliationReport) string {
	switch r.Status {
	case models.ListSkipped:
		return fmt.Sprintf("%s: skipped (no members)", r.ListName)
	case models.ListFailed:
		return fmt.Sprintf("%s: failed: %s", r.ListName, r.Error)
	}

	line := fmt.Sprintf("%s: +%d -%d =%d, %d after", r.ListName, r.Added, r.Removed, r.InBoth, r.TotalAfter)
	var problems []string
	if r.UpsertsFailed > 0 {
		problems = append(problems, fmt.Sprintf("%d upserts failed", r.UpsertsFailed))
	}
	if n := r.AddBatchesFailed + r.RemoveBatchesFailed; n > 0 {
		problems = append(problems, fmt.Sprintf("%d batches failed", n))
	}
	if len(problems) > 0 {
		line += " (" + strings.Join(problems, ", ") + ")"
	}
	return line
}

// ExportToJSON converts a run to indented JSON
func ExportToJSON(run *models.SyncRun) ([]byte, error) {
	data, err := json.MarshalIndent(NewRunExport(run), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToTable renders a run's reports followed by its summary as a table
func ExportToTable(run *models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	t := newTable(&buf)
	t.AppendHeader(table.Row{"List", "Status", "Added", "Removed", "In Both", "Total After", "Failures"})
	for _, r := range run.Reports() {
		t.AppendRow(table.Row{r.ListName, statusLabel(r), r.Added, r.Removed, r.InBoth, r.TotalAfter, failures(r)})
	}
	s := run.Summary()
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d lists", s.TotalLists),
		fmt.Sprintf("%d synced, %d failed", s.SyncedCount, s.FailedCount),
	})
	t.Render()

	if run.ErrorType() != "" {
		buf.WriteString(fmt.Sprintf("\n%s: %s\n", run.ErrorType(), run.ErrorMessage()))
	}
	return buf.Bytes(), nil
}

// Render writes a run in the named format.
func Render(w io.Writer, run *models.SyncRun, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case FormatTable, "":
		data, err = ExportToTable(run)
	case FormatText:
		data, err = ExportToText(run)
	case FormatMarkdown, "md":
		data, err = ExportToMarkdown(run)
	case FormatCSV:
		data, err = ExportToCSV(run)
	case FormatJSON:
		data, err = ExportToJSON(run)
	default:
		return fmt.Errorf("%w: format %q (expected one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport writes a run in the named format to path.
func WriteExport(run *models.SyncRun, path, format string) error {
	var buf bytes.Buffer
	if err := Render(&buf, run, format); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func title(run *models.SyncRun) string {
	name := "Sync Run"
	if run.DryRun() {
		name = "Sync Diff"
	}
	if run.Sequence() > 0 {
		name = fmt.Sprintf("%s #%d", name, run.Sequence())
	}
	return name
}

func statusLabel(r models.ReconciliationReport) string {
	if r.Status == models.ListSynced && (r.UpsertsFailed > 0 || r.AddBatchesFailed > 0 || r.RemoveBatchesFailed > 0) {
		return "partial"
	}
	return string(r.Status)
}

func failures(r models.ReconciliationReport) string {
	if r.Error != "" {
		return r.Error
	}

	var parts []string
	if r.UpsertsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d upserts", r.UpsertsFailed))
	}
	if r.AddBatchesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d add batches", r.AddBatchesFailed))
	}
	if r.RemoveBatchesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d remove batches", r.RemoveBatchesFailed))
	}
	return strings.Join(parts, ", ")
}

func listID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// DiffExport is the JSON shape of a dry run.
type DiffExport struct {
	Run   RunExport  `json:"run"`
	Lists []ListDiff `json:"lists"`
}

// ListDiff is the JSON shape of one list plan.
type ListDiff struct {
	ListName        string            `json:"listName"`
	DestinationName string            `json:"destinationName"`
	Exists          bool              `json:"exists"`
	Status          models.ListStatus `json:"status"`
	ToAdd           []string          `json:"toAdd"`
	ToRemove        []string          `json:"toRemove"`
	InBoth          int               `json:"inBoth"`
	TotalAfter      int               `json:"totalAfter"`
	Skipped         int               `json:"skippedRecords"`
	Error           string            `json:"error,omitempty"`
}

// RenderDiff writes a dry run's plans in the named format. Text and markdown list every email.
func RenderDiff(w io.Writer, diff *tasks.DiffResult, format string) error {
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case FormatTable, "":
		t := newTable(&buf)
		t.AppendHeader(table.Row{"List", "Destination", "Status", "To Add", "To Remove", "In Both", "Total After"})
		for _, p := range diff.Plans {
			dest := p.DestinationName
			if !p.Exists && p.Report.Status == models.ListPlanned {
				dest += " (new)"
			}
			t.AppendRow(table.Row{p.Report.ListName, dest, string(p.Report.Status), len(p.ToAdd), len(p.ToRemove), p.Report.InBoth, p.Report.TotalAfter})
		}
		t.Render()
	case FormatText, FormatMarkdown, "md":
		md := strings.ToLower(format) != FormatText
		for i, p := range diff.Plans {
			if i > 0 {
				buf.WriteString("\n")
			}
			writeDiffPlan(&buf, p, md)
		}
	case FormatCSV:
		writer := csv.NewWriter(&buf)
		if err := writer.Write([]string{"List", "Action", "Email"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
		for _, p := range diff.Plans {
			for _, e := range p.ToAdd {
				if err := writer.Write([]string{p.Report.ListName, "add", e}); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
			for _, e := range p.ToRemove {
				if err := writer.Write([]string{p.Report.ListName, "remove", e}); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("CSV writer error: %w", err)
		}
	case FormatJSON:
		export := DiffExport{Lists: make([]ListDiff, 0, len(diff.Plans))}
		if diff.Run != nil {
			export.Run = NewRunExport(diff.Run)
		}
		for _, p := range diff.Plans {
			export.Lists = append(export.Lists, ListDiff{
				ListName:        p.Report.ListName,
				DestinationName: p.DestinationName,
				Exists:          p.Exists,
				Status:          p.Report.Status,
				ToAdd:           nonNil(p.ToAdd),
				ToRemove:        nonNil(p.ToRemove),
				InBoth:          p.Report.InBoth,
				TotalAfter:      p.Report.TotalAfter,
				Skipped:         p.Extract.Skipped,
				Error:           p.Report.Error,
			})
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal diff: %w", err)
		}
		buf.Write(data)
		buf.WriteString("\n")
	default:
		return fmt.Errorf("%w: format %q (expected one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeDiffPlan(buf *bytes.Buffer, p tasks.ListPlan, md bool) {
	heading, bullet := "%s -> %s\n", "  %s %s\n"
	if md {
		heading, bullet = "## %s -> %s\n\n", "- `%s` %s\n"
	}

	buf.WriteString(fmt.Sprintf(heading, p.Report.ListName, p.DestinationName))
	switch p.Report.Status {
	case models.ListSkipped:
		buf.WriteString("skipped: no members\n")
		return
	case models.ListFailed:
		buf.WriteString(fmt.Sprintf("failed: %s\n", p.Report.Error))
		return
	}

	if !p.Exists {
		buf.WriteString("list will be created\n")
	}
	buf.WriteString(fmt.Sprintf("%d to add, %d to remove, %d unchanged, %d after\n",
		len(p.ToAdd), len(p.ToRemove), p.Report.InBoth, p.Report.TotalAfter))
	for _, e := range p.ToAdd {
		buf.WriteString(fmt.Sprintf(bullet, "+", e))
	}
	for _, e := range p.ToRemove {
		buf.WriteString(fmt.Sprintf(bullet, "-", e))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunsTable renders run history rows, newest first as given
func RunsTable(w io.Writer, runs []*models.SyncRun) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "ID", "Status", "Dry Run", "Started", "Duration", "Lists", "Failed", "Error"})
	for _, r := range runs {
		s := r.Summary()
		dry := ""
		if r.DryRun() {
			dry = "yes"
		}
		t.AppendRow(table.Row{
			r.Sequence(),
			shortID(r.ID()),
			string(r.Status()),
			dry,
			r.StartedAt().Local().Format(timeLayout),
			FormatDuration(r.Duration()),
			s.TotalLists,
			s.FailedCount,
			r.ErrorType(),
		})
	}
	t.Render()
}

// SourceListsTable renders source registry lists
func SourceListsTable(w io.Writer, lists []models.SourceList) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Parent", "Synced"})
	for _, l := range lists {
		synced := "no"
		if l.TopLevel() {
			synced = "yes"
		}
		t.AppendRow(table.Row{l.ID, l.Name, l.ParentID, synced})
	}
	t.Render()
}

// DestinationListsTable renders destination lists with the name of their folder
func DestinationListsTable(w io.Writer, lists []models.DestinationList, folders []models.Folder) {
	names := make(map[int64]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Folder", "Subscribers"})
	for _, l := range lists {
		folder := names[l.FolderID]
		if folder == "" && l.FolderID != 0 {
			folder = strconv.FormatInt(l.FolderID, 10)
		}
		t.AppendRow(table.Row{l.ID, l.Name, folder, l.Subscribers})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

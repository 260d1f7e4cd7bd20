package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/rostersync/internal/formatter"
	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	ListView
	ConfirmView
	SyncView
	ResultView
)

// SyncFunc runs a sync limited to the named source lists (all lists when names is empty),
// sending progress on the given channel.
type SyncFunc func(ctx context.Context, names []string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	view   ViewState
	source services.SourceRegistry
	sync   SyncFunc
	prefix string

	width       int
	height      int
	lists       list.Model
	sourceLists []models.SourceList
	selected    []string

	progressChan chan tasks.ProgressUpdate
	done         chan syncComplete
	progress     tasks.ProgressUpdate
	reports      []models.ReconciliationReport
	run          *models.SyncRun
	canceled     bool
	err          error

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
//
// prefix is the destination list name prefix, shown next to each source list.
func NewModel(ctx context.Context, source services.SourceRegistry, sync SyncFunc, prefix string) *Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom()))
	return &Model{
		ctx:     ctx,
		view:    LoadingView,
		source:  source,
		sync:    sync,
		prefix:  prefix,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching the source lists.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchLists())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view != LoadingView {
			m.lists.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ListView:
			return m.handleListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgListsFetched:
		data := msg.data.(listsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.sourceLists = data.lists
		items := make([]list.Item, len(data.lists))
		for i, l := range data.lists {
			items[i] = sourceListItem{list: l, prefix: m.prefix}
		}
		m.lists = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.lists.Title = fmt.Sprintf("%s lists", m.source.Name())
		m.lists.SetSize(m.width-4, m.height-8)
		m.view = ListView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if report, ok := update.Data.(models.ReconciliationReport); ok && update.Phase == tasks.ListDone {
			m.reports = append(m.reports, report)
		}
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.run = data.run
		m.err = data.err
		m.view = ResultView
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == LoadingView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading lists from %s...", m.spinner.View(), m.source.Name())
	case ListView:
		return m.renderLists()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lists.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.lists, cmd = m.lists.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.all):
		m.selected = nil
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.lists.SelectedItem().(sourceListItem); ok {
			m.selected = []string{item.list.Name}
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.lists, cmd = m.lists.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = ListView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.canceled {
		m.canceled = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = ListView
		m.selected = nil
		m.reports = nil
		m.run = nil
		m.err = nil
		m.canceled = false
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != ListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.lists, cmd = m.lists.Update(msg)
	return m, cmd
}

// fetchLists authenticates and returns the top-level lists that a sync would cover.
func (m *Model) fetchLists() tea.Cmd {
	return func() tea.Msg {
		if err := m.source.Authenticate(m.ctx); err != nil {
			return listsFetchedMsg(nil, err)
		}
		all, err := m.source.FetchLists(m.ctx)
		if err != nil {
			return listsFetchedMsg(nil, err)
		}

		var lists []models.SourceList
		for _, l := range all {
			if l.TopLevel() && l.ID != "" && strings.TrimSpace(l.Name) != "" {
				lists = append(lists, l)
			}
		}
		return listsFetchedMsg(lists, nil)
	}
}

func (m *Model) startSync() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan syncComplete, 1)
	m.reports = nil

	go func(names []string, progress chan tasks.ProgressUpdate, done chan<- syncComplete) {
		run, err := m.sync(ctx, names, progress)
		done <- syncComplete{run: run, err: err}
		close(progress)
	}(m.selected, m.progressChan, m.done)

	return tea.Batch(m.waitForProgress(), m.spinner.Tick)
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return syncCompleteMsg(m.run, m.err)
		}

		update, ok := <-progress
		if !ok {
			result := <-done
			return syncCompleteMsg(result.run, result.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderLists() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.lists.View(), helpView)
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	if len(m.selected) == 0 {
		b.WriteString(styles.title.Render(fmt.Sprintf("Sync all %d lists to Brevo?", len(m.sourceLists))))
	} else {
		b.WriteString(styles.title.Render(fmt.Sprintf("Sync '%s' to Brevo?", strings.Join(m.selected, "', '"))))
	}
	b.WriteString("\n")

	names := m.selected
	if len(names) == 0 {
		for _, l := range m.sourceLists {
			names = append(names, l.Name)
		}
	}
	for _, n := range names {
		b.WriteString(fmt.Sprintf("  • %s → %s\n", n, styles.As(m.prefix+n, accent)))
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderSync() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Syncing lists"))
	b.WriteString("\n")
	b.WriteString(m.renderReports())

	message := m.progress.Message
	if message == "" {
		message = "Starting..."
	}
	if m.canceled {
		message = styles.warn.Render("Canceling after the current step...")
	}
	b.WriteString(fmt.Sprintf("\n%s %s\n", m.spinner.View(), message))

	helpKeys := []key.Binding{m.keys.cancel}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderReports() string {
	reports := m.reports
	if m.run != nil && len(m.run.Reports()) > 0 {
		reports = m.run.Reports()
	}

	var b strings.Builder
	for _, r := range reports {
		line := formatter.ReportLine(r)
		switch {
		case r.Status == models.ListFailed:
			b.WriteString(styles.err.Render("✗ "+line) + "\n")
		case r.Status == models.ListSkipped:
			b.WriteString(styles.help.Render("- "+line) + "\n")
		case r.UpsertsFailed > 0 || r.AddBatchesFailed > 0 || r.RemoveBatchesFailed > 0:
			b.WriteString(styles.warn.Render("! "+line) + "\n")
		default:
			b.WriteString(styles.ok.Render("✓ "+line) + "\n")
		}
	}
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.run == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Sync failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var title string
	if m.err != nil {
		title = styles.err.Render(fmt.Sprintf("✗ Sync failed: %s", m.run.ErrorType()))
	} else {
		title = styles.ok.Render("✓ Sync complete")
	}

	s := m.run.Summary()
	summary := fmt.Sprintf("Lists: %d   Synced: %d   Failed: %d   Duration: %s",
		s.TotalLists, s.SyncedCount, s.FailedCount, formatter.FormatDuration(m.run.Duration()))
	if m.err != nil {
		summary += "\n" + m.run.ErrorMessage()
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s", title, styles.box.Render(summary), m.renderReports(), helpView)
}

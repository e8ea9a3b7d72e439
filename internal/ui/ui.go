package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SyncingView ViewState = iota
	ResultView
)

const recentOutcomes = 6

// Syncer runs a sync and reports progress, satisfied by [tasks.SyncEngine].
type Syncer interface {
	Run(ctx context.Context, opts tasks.SyncOpts, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	syncer       Syncer
	opts         tasks.SyncOpts
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	outcomes     list.Model
	settled      []models.SyncOutcome
	pages        int
	totalPages   int
	step         int
	total        int
	pageErr      string
	canceling    bool
	failuresOnly bool
	progressChan chan tasks.ProgressUpdate
	done         chan syncComplete
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a model that runs syncer with opts once started.
func NewModel(ctx context.Context, syncer Syncer, opts tasks.SyncOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)

	outcomes := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	outcomes.Title = "Tours"
	outcomes.DisableQuitKeybindings()
	outcomes.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		view:     SyncingView,
		syncer:   syncer,
		opts:     opts,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		outcomes: outcomes,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Run starts the program and blocks until the user quits.
// The result is nil if the sync never finished.
func Run(ctx context.Context, syncer Syncer, opts tasks.SyncOpts) (*tasks.SyncResult, error) {
	m := NewModel(ctx, syncer, opts)
	defer m.cancel()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return m.result, fmt.Errorf("TUI error: %w", err)
	}
	return m.result, m.err
}

// Result returns the finished sync result, nil while running.
func (m *Model) Result() *tasks.SyncResult { return m.result }

// Err returns the error the engine returned, if any.
func (m *Model) Err() error { return m.err }

// Init starts the spinner and the sync.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startSync())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), 60)
		m.outcomes.SetSize(msg.Width-4, max(msg.Height-8, 4))
		return m, nil

	case spinner.TickMsg:
		if m.view != SyncingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.view == SyncingView {
			return m.handleSyncingKeys(msg)
		}
		return m.handleResultKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgSyncComplete:
			done := msg.data.(syncComplete)
			m.finish(done.result, done.err)
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.outcomes, cmd = m.outcomes.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SyncingView:
		return m.renderSyncing()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSyncingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && !m.canceling {
		m.canceling = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.outcomes.SettingFilter() {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.failures):
			m.failuresOnly = !m.failuresOnly
			return m, m.outcomes.SetItems(m.items())
		}
	}

	var cmd tea.Cmd
	m.outcomes, cmd = m.outcomes.Update(msg)
	return m, cmd
}

func (m *Model) apply(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchPages:
		m.pages = update.Step
		m.totalPages = update.Total
	case tasks.TransferTours:
		m.step = update.Step
		m.total = update.Total
		if o, ok := update.Data.(models.SyncOutcome); ok {
			m.settled = append(m.settled, o)
		}
	case tasks.PageFailed:
		m.pageErr = update.Message
	}
}

func (m *Model) finish(result *tasks.SyncResult, err error) {
	m.result = result
	m.err = err
	m.view = ResultView
	m.progressChan = nil
	m.cancel()
	m.outcomes.SetItems(m.items())
}

func (m *Model) items() []list.Item {
	if m.result == nil {
		return nil
	}
	return outcomeItems(m.result.Outcomes, m.failuresOnly)
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan syncComplete, 1)

	progress, done := m.progressChan, m.done
	go func() {
		result, err := m.syncer.Run(m.ctx, m.opts, progress)
		close(progress)
		done <- syncComplete{result, err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		d := <-done
		return syncCompleteMsg(d.result, d.err)
	}
}

func (m *Model) ratio() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.step) / float64(m.total)
}

func (m *Model) renderSyncing() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Komoot → Strava since %s", m.opts.Start.Format("2006-01-02 15:04"))))
	b.WriteString("\n")

	status := "Listing tours..."
	if m.totalPages > 0 {
		status = fmt.Sprintf("Page %d/%d • %d/%d tours settled", m.pages, m.totalPages, m.step, m.total)
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), status)
	b.WriteString(m.bar.ViewAs(m.ratio()))
	b.WriteString("\n\n")

	recent := m.settled[max(len(m.settled)-recentOutcomes, 0):]
	for _, o := range recent {
		item := outcomeItem{outcome: o}
		fmt.Fprintf(&b, "%s  %s\n", item.Title(), styles.help.Render(item.Description()))
	}

	if m.pageErr != "" {
		b.WriteString("\n" + styles.warn.Render(m.pageErr) + "\n")
	}
	if m.canceling {
		b.WriteString("\n" + styles.warn.Render("Canceling, waiting for tours in flight...") + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) +
			"\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}

	r := m.result
	var title string
	switch {
	case r.Canceled:
		title = styles.warn.Bold(true).Render("Sync canceled")
	case r.OK():
		title = styles.ok.Render("✓ Sync complete")
	default:
		title = styles.warn.Bold(true).Render("Sync finished with failures")
	}

	summary := fmt.Sprintf("Uploaded: %d   Failed: %d   Pages: %d   Took: %s",
		r.Succeeded, r.Failed, r.Pages, r.Duration().Round(time.Millisecond))
	if r.PageErr != nil {
		summary += "\n" + styles.err.Render(fmt.Sprintf("Listing stopped: %v", r.PageErr))
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s",
		title,
		styles.box.Render(summary),
		m.outcomes.View(),
		m.help.ShortHelpView([]key.Binding{m.keys.failures, m.keys.quit}),
	)
}

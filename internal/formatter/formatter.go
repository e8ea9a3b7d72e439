// package formatter renders sync reports and run history as text, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/desertthunder/stramoot/internal/tasks"
)

// Format is an output format for reports.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}
}

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// FormatFromPath infers a format from a file extension, defaulting to text.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatText
	}
	return f
}

// Report is a finished sync run in a form every format can render.
type Report struct {
	RunID       string                 `json:"run_id,omitempty"`
	Sequence    int                    `json:"sequence,omitempty"`
	WindowStart time.Time              `json:"window_start"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Pages       int                    `json:"pages"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	PageError   string                 `json:"page_error,omitempty"`
	Canceled    bool                   `json:"canceled,omitempty"`
	Outcomes    []models.OutcomeRecord `json:"outcomes"`
}

// Total is the number of tours that settled.
func (r *Report) Total() int { return r.Succeeded + r.Failed }

// Duration is the wall time of the run, zero while unfinished.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunReport builds a report from a journal entry and its stored outcomes.
func NewRunReport(run *models.SyncRun, outcomes []models.OutcomeRecord) *Report {
	r := &Report{
		RunID:       run.ID(),
		Sequence:    run.Sequence(),
		WindowStart: run.WindowStart(),
		StartedAt:   run.StartedAt(),
		Succeeded:   run.Succeeded(),
		Failed:      run.Failed(),
		PageError:   run.PageError(),
		Outcomes:    outcomes,
	}
	if f := run.FinishedAt(); f != nil {
		r.FinishedAt = *f
	}
	return r
}

// Render writes the report to w in the given format.
func Render(w io.Writer, r *Report, f Format) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatText, "":
		data, err = ToText(r)
	case FormatJSON:
		data, err = ToJSON(r)
	case FormatCSV:
		data, err = ToCSV(r)
	case FormatMarkdown:
		data, err = ToMarkdown(r)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteReport renders the report into a file, creating parent directories.
// An empty format is inferred from the file extension.
func WriteReport(path string, r *Report, f Format) error {
	if f == "" {
		f = FormatFromPath(path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Render(&buf, r, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ToJSON encodes the report as indented JSON
func ToJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ToCSV writes one row per outcome with columns: Tour ID, Name, Upload ID, Status, Stage, Error
func ToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Tour ID", "Name", "Upload ID", "Status", "Stage", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range r.Outcomes {
		record := []string{
			tourID(o),
			o.TourName,
			uploadID(o),
			status(o),
			o.Stage.String(),
			o.Error,
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

// ToMarkdown renders a summary followed by a table of outcomes
func ToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	if r.Sequence > 0 {
		fmt.Fprintf(&buf, "# Sync run #%d\n\n", r.Sequence)
	} else {
		buf.WriteString("# Sync run\n\n")
	}

	fmt.Fprintf(&buf, "**Since**: %s\n", r.WindowStart.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Started**: %s\n", r.StartedAt.Format(time.RFC3339))
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&buf, "**Duration**: %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(&buf, "**Tours**: %d (%d uploaded, %d failed)\n", r.Total(), r.Succeeded, r.Failed)
	if r.PageError != "" {
		fmt.Fprintf(&buf, "**Listing stopped**: %s\n", r.PageError)
	}
	if r.Canceled {
		buf.WriteString("**Canceled**: yes\n")
	}

	if len(r.Outcomes) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Tours\n\n")
	buf.WriteString("| Tour | Name | Upload | Status | Detail |\n")
	buf.WriteString("|------|------|--------|--------|--------|\n")
	for _, o := range r.Outcomes {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s |\n",
			tourID(o), escapeCell(o.TourName), uploadID(o), status(o), escapeCell(detail(o)))
	}
	return buf.Bytes(), nil
}

// ToText renders a plain summary with one line per failure
func ToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	if r.Sequence > 0 {
		fmt.Fprintf(&buf, "Run #%d (%s)\n", r.Sequence, r.RunID)
	}
	fmt.Fprintf(&buf, "Since: %s\n", r.WindowStart.Format(time.RFC3339))
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&buf, "Duration: %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(&buf, "Tours: %d uploaded, %d failed\n", r.Succeeded, r.Failed)
	if r.PageError != "" {
		fmt.Fprintf(&buf, "Listing stopped: %s\n", r.PageError)
	}
	if r.Canceled {
		buf.WriteString("Canceled before completion\n")
	}

	var failures []models.OutcomeRecord
	for _, o := range r.Outcomes {
		if o.Error != "" && o.Stage != models.StageFetchPage {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for _, o := range failures {
			fmt.Fprintf(&buf, "  %s %q [%s] %s\n", tourID(o), o.TourName, o.Stage, o.Error)
		}
	}
	return buf.Bytes(), nil
}

// RunTable renders journal entries as a terminal table, newest first as given
func RunTable(runs []*models.SyncRun) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	failed := cell.Foreground(lipgloss.Color("9"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "Since", "Started", "OK", "Failed", "Note").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 5 && row >= 0 && row < len(runs) && runs[row].Failed() > 0:
				return failed
			default:
				return cell
			}
		})

	for _, run := range runs {
		t.Row(
			strconv.Itoa(run.Sequence()),
			shortID(run.ID()),
			run.WindowStart().Format("2006-01-02 15:04"),
			run.StartedAt().Format("2006-01-02 15:04"),
			strconv.Itoa(run.Succeeded()),
			strconv.Itoa(run.Failed()),
			runNote(run),
		)
	}
	return t.String()
}

func runNote(run *models.SyncRun) string {
	switch {
	case run.FinishedAt() == nil:
		return "unfinished"
	case run.PageError() != "":
		return "listing stopped"
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func tourID(o models.OutcomeRecord) string {
	if o.Stage == models.StageFetchPage {
		return "-"
	}
	return strconv.FormatUint(uint64(o.TourID), 10)
}

func uploadID(o models.OutcomeRecord) string {
	if o.UploadID == 0 {
		return ""
	}
	return strconv.FormatInt(o.UploadID, 10)
}

func status(o models.OutcomeRecord) string {
	if o.Error == "" {
		return "uploaded"
	}
	return "failed"
}

func detail(o models.OutcomeRecord) string {
	if o.Error == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", o.Stage, o.Error)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// NewResultReport builds a report from an engine result that was not journaled.
func NewResultReport(res *tasks.SyncResult) *Report {
	r := &Report{
		WindowStart: res.Start,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Pages:       res.Pages,
		Succeeded:   res.Succeeded,
		Failed:      res.Failed,
		Canceled:    res.Canceled,
		Outcomes:    make([]models.OutcomeRecord, 0, len(res.Outcomes)),
	}
	if res.PageErr != nil {
		r.PageError = res.PageErr.Error()
	}
	for _, o := range res.Outcomes {
		r.Outcomes = append(r.Outcomes, models.NewOutcomeRecord("", o))
	}
	return r
}

// TourTable renders a tour listing with the Strava activity type each tour maps to
func TourTable(tours []models.Tour) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Date", "Sport", "Strava", "Name").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, tour := range tours {
		t.Row(
			tour.ExternalID(),
			tour.Date,
			tour.Sport.String(),
			tour.Sport.ActivityType(),
			tour.Name,
		)
	}
	return t.String()
}

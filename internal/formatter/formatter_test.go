package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/desertthunder/stramoot/internal/tasks"
	th "github.com/desertthunder/stramoot/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	started := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	return &Report{
		RunID:       "6f1c2a9e-0000-4000-8000-000000000000",
		Sequence:    7,
		WindowStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
		Pages:       2,
		Succeeded:   2,
		Failed:      1,
		PageError:   "fetching page 2: status 502",
		Outcomes: []models.OutcomeRecord{
			{TourID: 101, TourName: "Ridge | loop", UploadID: 9001},
			{TourID: 102, TourName: "Gravel", UploadID: 9002, Stage: models.StagePollFailed, Error: "duplicate of activity 42"},
			{TourID: 103, TourName: "Commute", UploadID: 9003},
			{Stage: models.StageFetchPage, Error: "fetching page 2: status 502"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"txt", FormatText},
		{"JSON", FormatJSON},
		{"csv", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseFormat("yaml")
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})

	t.Run("FromPath", func(t *testing.T) {
		assert.Equal(t, FormatMarkdown, FormatFromPath("out/report.md"))
		assert.Equal(t, FormatText, FormatFromPath("report.log"))
	})
}

func TestRenderers(t *testing.T) {
	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(sampleReport())
		require.NoError(t, err)
		output := string(data)

		assert.True(t, strings.HasPrefix(output, "Tour ID,Name,Upload ID,Status,Stage,Error\n"), "CSV missing headers:\n%s", output)
		assert.Contains(t, output, "102,Gravel,9002,failed,poll-failed,duplicate of activity 42")
		assert.Contains(t, output, "-,,,failed,fetch-page,")
		assert.Equal(t, 5, strings.Count(output, "\n"))
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		data, err := ToMarkdown(sampleReport())
		require.NoError(t, err)
		output := string(data)

		for _, want := range []string{
			"# Sync run #7",
			"**Tours**: 3 (2 uploaded, 1 failed)",
			"**Listing stopped**: fetching page 2: status 502",
			"**Duration**: 1m30s",
			`| 101 | Ridge \| loop | 9001 | uploaded |  |`,
			"| 102 | Gravel | 9002 | failed | poll-failed: duplicate of activity 42 |",
		} {
			assert.Contains(t, output, want)
		}
	})

	t.Run("ToMarkdown without outcomes", func(t *testing.T) {
		r := sampleReport()
		r.Outcomes = nil
		data, err := ToMarkdown(r)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "## Tours")
	})

	t.Run("ToText", func(t *testing.T) {
		data, err := ToText(sampleReport())
		require.NoError(t, err)
		output := string(data)

		assert.Contains(t, output, "Tours: 2 uploaded, 1 failed")
		assert.Contains(t, output, `102 "Gravel" [poll-failed] duplicate of activity 42`)
		assert.Equal(t, 1, strings.Count(output, "fetching page 2"), "page error should be reported once")
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(sampleReport())
		require.NoError(t, err)

		var decoded Report
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded.Outcomes, 4)
		assert.Equal(t, models.StagePollFailed, decoded.Outcomes[1].Stage)
		assert.Contains(t, string(data), `"stage": "poll-failed"`)
	})

	t.Run("Render unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, Render(&buf, sampleReport(), Format("xml")))
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("infers format from extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "run.csv")
		require.NoError(t, WriteReport(path, sampleReport(), ""))

		th.AssertFileExists(t, path)
		assert.True(t, strings.HasPrefix(th.MustReadFile(t, path), "Tour ID,"))
	})

	t.Run("explicit format wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.txt")
		require.NoError(t, WriteReport(path, sampleReport(), FormatJSON))
		assert.True(t, strings.HasPrefix(th.MustReadFile(t, path), "{"))
	})
}

func TestReports(t *testing.T) {
	t.Run("NewResultReport", func(t *testing.T) {
		tours := th.Tours(1, 2, models.SportHike)
		res := &tasks.SyncResult{
			Start:     time.Now().Add(-48 * time.Hour),
			Succeeded: 1,
			Failed:    1,
			PageErr:   errors.New("boom"),
			Outcomes: []models.SyncOutcome{
				models.NewSuccess(tours[0], 5),
				models.NewFailure(tours[1], 0, models.StageDownload, errors.New("404")),
				{Stage: models.StageFetchPage, Err: errors.New("boom")},
			},
		}

		r := NewResultReport(res)
		assert.Equal(t, "boom", r.PageError)
		require.Len(t, r.Outcomes, 3)
		assert.Equal(t, "404", r.Outcomes[1].Error)
		assert.Equal(t, int64(5), r.Outcomes[0].UploadID)
	})

	t.Run("NewRunReport", func(t *testing.T) {
		run := models.NewSyncRun(3, time.Now().Add(-time.Hour), 4)
		run.SetID("abc")
		run.Finish(4, 0, nil)

		r := NewRunReport(run, nil)
		assert.Equal(t, 3, r.Sequence)
		assert.Equal(t, 4, r.Total())
		assert.False(t, r.FinishedAt.IsZero())
	})

	t.Run("RunTable", func(t *testing.T) {
		done := models.NewSyncRun(1, time.Now(), 4)
		done.SetID("0123456789abcdef")
		done.Finish(3, 1, nil)
		pending := models.NewSyncRun(2, time.Now(), 4)
		pending.SetID("fedcba9876543210")

		out := RunTable([]*models.SyncRun{pending, done})
		for _, want := range []string{"01234567", "fedcba98", "unfinished"} {
			assert.Contains(t, out, want)
		}
		assert.NotContains(t, out, "0123456789", "ids should be shortened")
	})
}

func TestTourTable(t *testing.T) {
	tours := th.Tours(40, 2, models.SportRaceBike)
	tours[1].Sport = models.SportHike

	out := TourTable(tours)
	for _, want := range []string{"40", "Tour 41", "racebike", "ride", "hike"} {
		assert.Contains(t, out, want)
	}
}

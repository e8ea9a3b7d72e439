// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/services"
)

// Tours builds n tours with consecutive ids starting at first.
func Tours(first uint32, n int, sport models.Sport) []models.Tour {
	tours := make([]models.Tour, 0, n)
	for i := range n {
		id := first + uint32(i)
		tours = append(tours, models.Tour{
			ID:     id,
			Name:   fmt.Sprintf("Tour %d", id),
			Status: "private",
			Type:   "tour_recorded",
			Date:   "2024-05-01T08:00:00.000Z",
			Sport:  sport,
		})
	}
	return tours
}

// GPX returns the fake content served for a tour.
func GPX(id uint32) string {
	return fmt.Sprintf(`<?xml version="1.0"?><gpx version="1.1"><trk><name>%d</name></trk></gpx>`, id)
}

// Gauge tracks how many units are in flight and the highest count observed.
type Gauge struct {
	mu   sync.Mutex
	cur  int
	peak int
}

func (g *Gauge) Enter() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur++
	g.peak = max(g.peak, g.cur)
}

func (g *Gauge) Leave() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur--
}

func (g *Gauge) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

func (g *Gauge) Current() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cur
}

var (
	_ services.Source      = (*FakeSource)(nil)
	_ services.Destination = (*FakeDestination)(nil)
)

// FakeSource is an in-memory [services.Source].
//
// Page k serves Pages[k]. Page 0 reports Total; later pages report LaterTotal
// when it is non-zero.
type FakeSource struct {
	Pages         [][]models.Tour
	Total         int
	LaterTotal    int
	PageErrs      map[int]error
	DownloadErrs  map[uint32]error
	BrokenStreams map[uint32]bool
	Delay         time.Duration
	Gauge         *Gauge

	mu        sync.Mutex
	fetches   []int
	downloads []uint32
}

// NewFakeSource serves pages with the page-0 total equal to the number of pages.
func NewFakeSource(pages ...[]models.Tour) *FakeSource {
	return &FakeSource{Pages: pages, Total: len(pages)}
}

func (f *FakeSource) FetchPage(ctx context.Context, start time.Time, page, size int) (*models.TourPage, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, page)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.PageErrs[page]; ok {
		return nil, err
	}

	total := f.Total
	if page > 0 && f.LaterTotal != 0 {
		total = f.LaterTotal
	}

	result := &models.TourPage{Index: page, TotalPages: total}
	if page < len(f.Pages) {
		tours := f.Pages[page]
		if size > 0 && len(tours) > size {
			tours = tours[:size]
		}
		result.Tours = append([]models.Tour(nil), tours...)
	}
	return result, nil
}

func (f *FakeSource) Download(ctx context.Context, tourID uint32) (io.ReadCloser, error) {
	f.Gauge.Enter()
	f.mu.Lock()
	f.downloads = append(f.downloads, tourID)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			f.Gauge.Leave()
			return nil, ctx.Err()
		}
	}

	if err, ok := f.DownloadErrs[tourID]; ok {
		f.Gauge.Leave()
		return nil, err
	}
	if f.BrokenStreams[tourID] {
		return &brokenStream{tourID: tourID, r: strings.NewReader("<gpx><trk>")}, nil
	}
	return io.NopCloser(strings.NewReader(GPX(tourID))), nil
}

// brokenStream serves a few bytes and then fails like a dropped connection.
type brokenStream struct {
	tourID uint32
	r      io.Reader
}

func (b *brokenStream) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, &services.StreamReadError{TourID: b.tourID, Err: io.ErrUnexpectedEOF}
	}
	return n, err
}

func (b *brokenStream) Close() error { return nil }

// Fetches returns the page indexes requested, in order.
func (f *FakeSource) Fetches() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetches...)
}

// Downloads returns the tour ids downloaded, in order.
func (f *FakeSource) Downloads() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.downloads...)
}

// Submission is an upload received by [FakeDestination].
type Submission struct {
	Handle       models.UploadHandle
	ExternalID   string
	Name         string
	ActivityType string
	DataType     string
	Content      string
}

// FakeDestination is an in-memory [services.Destination].
//
// Each upload walks through Script (or Scripts[external id]) one state per poll,
// repeating the last state once exhausted. An empty script succeeds on the first poll.
type FakeDestination struct {
	Script     []models.UploadStateKind
	Scripts    map[string][]models.UploadStateKind
	FailureMsg string
	SubmitErrs map[string]error
	StatusErrs map[string]error
	Gauge      *Gauge

	mu          sync.Mutex
	nextHandle  models.UploadHandle
	submissions []Submission
	byHandle    map[models.UploadHandle]string
	polls       map[models.UploadHandle]int
}

func NewFakeDestination(script ...models.UploadStateKind) *FakeDestination {
	return &FakeDestination{Script: script}
}

func (f *FakeDestination) Submit(ctx context.Context, req models.UploadRequest) (models.UploadHandle, error) {
	content, err := io.ReadAll(req.Content)
	if err != nil {
		f.Gauge.Leave()
		return 0, fmt.Errorf("write request body: %w", err)
	}
	if err, ok := f.SubmitErrs[req.ExternalID]; ok {
		f.Gauge.Leave()
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byHandle == nil {
		f.byHandle = make(map[models.UploadHandle]string)
		f.polls = make(map[models.UploadHandle]int)
		f.nextHandle = 1000
	}
	f.nextHandle++
	h := f.nextHandle
	f.byHandle[h] = req.ExternalID
	f.submissions = append(f.submissions, Submission{
		Handle:       h,
		ExternalID:   req.ExternalID,
		Name:         req.Name,
		ActivityType: req.ActivityType,
		DataType:     req.DataType,
		Content:      string(content),
	})
	return h, nil
}

func (f *FakeDestination) Status(ctx context.Context, h models.UploadHandle) (*models.UploadStatus, error) {
	f.mu.Lock()
	externalID, ok := f.byHandle[h]
	if !ok {
		f.mu.Unlock()
		return nil, errors.New("unknown upload")
	}
	n := f.polls[h]
	f.polls[h] = n + 1
	script := f.Script
	if s, ok := f.Scripts[externalID]; ok {
		script = s
	}
	f.mu.Unlock()

	if err, ok := f.StatusErrs[externalID]; ok {
		f.Gauge.Leave()
		return nil, err
	}

	kind := models.UploadSucceeded
	if len(script) > 0 {
		kind = script[min(n, len(script)-1)]
	}

	status := &models.UploadStatus{ID: int64(h), IDStr: h.String()}
	switch kind {
	case models.UploadInProgress:
		status.Status = "Your activity is still being processed."
	case models.UploadFailed:
		msg := f.FailureMsg
		if msg == "" {
			msg = "There was an error processing your activity."
		}
		status.Error = &msg
		status.Status = "There was an error processing your activity."
		f.Gauge.Leave()
	case models.UploadSucceeded:
		id := externalID
		activity := int64(h) * 10
		status.ExternalID = &id
		status.ActivityID = &activity
		status.Status = "Your activity is ready."
		f.Gauge.Leave()
	}
	return status, nil
}

// Submissions returns every accepted upload.
func (f *FakeDestination) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submissions...)
}

// Polls returns how many times the upload's status was requested.
func (f *FakeDestination) Polls(h models.UploadHandle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[h]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

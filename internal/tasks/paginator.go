package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/services"
	"github.com/desertthunder/stramoot/internal/shared"
)

// MaxPageSize is the largest page the source is asked for.
const MaxPageSize = 255

// TourCursor walks the pages of recorded tours since a start time.
//
// The page count is learned from page 0 and never re-read; a total of zero is an
// empty sequence. The first fetch error ends the sequence and is kept in Err.
// A cursor cannot be restarted.
//
//	c, _ := NewTourCursor(src, start, 50)
//	for c.Next(ctx) {
//		for _, t := range c.Page().Tours { ... }
//	}
//	if err := c.Err(); err != nil { ... }
type TourCursor struct {
	source services.Source
	start  time.Time
	size   int

	next  int
	total int
	known bool
	done  bool

	page *models.TourPage
	err  error
}

// NewTourCursor validates the page size and returns a cursor positioned before page 0.
func NewTourCursor(source services.Source, start time.Time, pageSize int) (*TourCursor, error) {
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size %d outside 1..%d", shared.ErrInvalidArgument, pageSize, MaxPageSize)
	}
	return &TourCursor{source: source, start: start, size: pageSize}, nil
}

// Next fetches the following page and reports whether one is available.
func (c *TourCursor) Next(ctx context.Context) bool {
	c.page = nil
	if c.done {
		return false
	}
	if c.known && c.next >= c.total {
		c.done = true
		return false
	}

	page, err := c.source.FetchPage(ctx, c.start, c.next, c.size)
	if err != nil {
		c.err = &PageFetchError{Page: c.next, Err: err}
		c.done = true
		return false
	}

	if !c.known {
		c.total = max(page.TotalPages, 0)
		c.known = true
		if c.total == 0 {
			c.done = true
			return false
		}
	}

	page.Index = c.next
	page.TotalPages = c.total
	c.page = page
	c.next++
	return true
}

// Page returns the page fetched by the last successful call to Next.
func (c *TourCursor) Page() *models.TourPage { return c.page }

// Err returns the [*PageFetchError] that ended the sequence, if any.
func (c *TourCursor) Err() error { return c.err }

// Total returns the page count once page 0 has been fetched.
func (c *TourCursor) Total() (int, bool) { return c.total, c.known }

// Fetched returns how many pages were successfully fetched.
func (c *TourCursor) Fetched() int { return c.next }

package tasks

import (
	"fmt"

	"github.com/desertthunder/stramoot/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Units settled so far, or pages fetched for [FetchPages]
	Total   int    // Units issued so far, or the page count once known
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPages Phase = iota
	TransferTours
	PageFailed
	Finished
)

func (p Phase) String() string {
	switch p {
	case FetchPages:
		return "fetch_pages"
	case TransferTours:
		return "transfer_tours"
	case PageFailed:
		return "page_failed"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func pageFetchedUpdate(page *models.TourPage) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPages,
		Step:    page.Index + 1,
		Total:   page.TotalPages,
		Message: fmt.Sprintf("[page %d/%d] %d tours", page.Index+1, page.TotalPages, len(page.Tours)),
		Data:    page,
	}
}

func pageFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PageFailed,
		Message: fmt.Sprintf("✗ %v", err),
	}
}

// outcomeUpdate carries the settled [models.SyncOutcome] as Data.
func outcomeUpdate(settled, issued int, o models.SyncOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (upload %d)", settled, issued, o.TourName, o.Upload)
	if !o.Succeeded() {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", settled, issued, o.TourName, o.Err)
	}
	return ProgressUpdate{
		Phase:   TransferTours,
		Step:    settled,
		Total:   issued,
		Message: msg,
		Data:    o,
	}
}

// finishedUpdate carries the [SyncResult] as Data.
func finishedUpdate(r *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    r.Succeeded,
		Total:   r.Issued,
		Message: fmt.Sprintf("%d of %d tours transferred", r.Succeeded, r.Issued),
		Data:    r,
	}
}

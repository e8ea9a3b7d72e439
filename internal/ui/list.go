package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/stramoot/internal/models"
)

var _ list.DefaultItem = outcomeItem{}

// outcomeItem wraps [models.SyncOutcome] to implement [list.Item].
type outcomeItem struct {
	outcome models.SyncOutcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.TourName }

func (i outcomeItem) Title() string {
	if i.outcome.Stage == models.StageFetchPage {
		return styles.err.Render("✗ listing stopped")
	}
	if i.outcome.Succeeded() {
		return styles.ok.Render("✓ ") + i.outcome.TourName
	}
	return styles.err.Render("✗ ") + i.outcome.TourName
}

func (i outcomeItem) Description() string {
	o := i.outcome
	switch {
	case o.Stage == models.StageFetchPage:
		return o.Err.Error()
	case o.Succeeded():
		return fmt.Sprintf("tour %d • upload %d", o.TourID, o.Upload)
	default:
		return fmt.Sprintf("tour %d • %s: %v", o.TourID, o.Stage, o.Err)
	}
}

// outcomeItems converts outcomes to list items, optionally keeping failures only.
func outcomeItems(outcomes []models.SyncOutcome, failuresOnly bool) []list.Item {
	items := make([]list.Item, 0, len(outcomes))
	for _, o := range outcomes {
		if failuresOnly && o.Succeeded() {
			continue
		}
		items = append(items, outcomeItem{outcome: o})
	}
	return items
}

// package services defines the Komoot and Strava HTTP clients behind the [Source] and [Destination] interfaces
package services

import (
	"context"
	"io"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
)

// Source lists and downloads recorded tours.
type Source interface {
	// FetchPage returns page (0-based) of the recorded tours since start, size tours at a time.
	FetchPage(ctx context.Context, start time.Time, page, size int) (*models.TourPage, error)

	// Download opens the tour's GPX content. The caller closes the stream.
	//
	// A non-success response is returned as [*HTTPError]; failures while reading
	// the stream surface as [*StreamReadError].
	Download(ctx context.Context, tourID uint32) (io.ReadCloser, error)
}

// Destination accepts uploads and reports their processing status.
type Destination interface {
	// Submit sends the content and metadata and returns the handle of the accepted upload.
	Submit(ctx context.Context, req models.UploadRequest) (models.UploadHandle, error)

	// Status fetches the current status of an upload.
	Status(ctx context.Context, h models.UploadHandle) (*models.UploadStatus, error)
}

var (
	_ Source      = (*KomootService)(nil)
	_ Destination = (*StravaService)(nil)
)

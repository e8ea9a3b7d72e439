package tasks

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/services"
)

// Transferrer copies one tour from the source to the destination.
type Transferrer struct {
	source services.Source
	dest   services.Destination
	logger *log.Logger
}

func NewTransferrer(source services.Source, dest services.Destination, logger *log.Logger) *Transferrer {
	return &Transferrer{source: source, dest: dest, logger: orDiscard(logger)}
}

// Transfer streams the tour's GPX into a new upload and returns its handle.
//
// It does not retry. A failed download, including one that breaks while the
// upload is being sent, is a [*DownloadError]; any other submit failure is an
// [*UploadSubmitError].
func (t *Transferrer) Transfer(ctx context.Context, tour models.Tour) (models.UploadHandle, error) {
	t.logger.Debug("downloading tour", "name", tour.Name, "sport", tour.Sport)

	body, err := t.source.Download(ctx, tour.ID)
	if err != nil {
		return 0, &DownloadError{TourID: tour.ID, Err: err}
	}
	defer body.Close()

	content := &trackingReader{r: body}
	h, err := t.dest.Submit(ctx, models.NewUploadRequest(tour, content))
	if err != nil {
		if readErr := content.Err(); readErr != nil {
			return 0, &DownloadError{TourID: tour.ID, Err: readErr}
		}
		return 0, &UploadSubmitError{TourID: tour.ID, Err: err}
	}

	t.logger.Debug("upload accepted", "upload_id", h, "bytes", content.Count())
	return h, nil
}

// trackingReader remembers the first read error so that a broken download can
// be told apart from a rejected upload.
type trackingReader struct {
	r io.Reader

	mu  sync.Mutex
	n   int64
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)

	t.mu.Lock()
	t.n += int64(n)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	return n, err
}

func (t *trackingReader) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *trackingReader) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

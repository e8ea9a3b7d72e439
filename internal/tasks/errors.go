package tasks

import (
	"errors"
	"fmt"

	"github.com/desertthunder/stramoot/internal/models"
)

// PageFetchError ends the page sequence.
type PageFetchError struct {
	Page int
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetching page %d: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// DownloadError is a failure to obtain a tour's content, either from the
// response status or from a stream that broke mid-read.
type DownloadError struct {
	TourID uint32
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading tour %d: %v", e.TourID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UploadSubmitError is a rejected or failed upload submission.
type UploadSubmitError struct {
	TourID uint32
	Err    error
}

func (e *UploadSubmitError) Error() string {
	return fmt.Sprintf("uploading tour %d: %v", e.TourID, e.Err)
}

func (e *UploadSubmitError) Unwrap() error { return e.Err }

// UploadFailedError is an upload the destination finished processing with an error.
type UploadFailedError struct {
	Upload  models.UploadHandle
	Message string
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload %d failed: %s", e.Upload, e.Message)
}

// UploadTimeoutError is an upload still processing when the poll budget ran out.
type UploadTimeoutError struct {
	Upload   models.UploadHandle
	Attempts int
}

func (e *UploadTimeoutError) Error() string {
	return fmt.Sprintf("upload %d still in progress after %d attempts", e.Upload, e.Attempts)
}

// StatusCheckError is a poll that could not be completed. It is not retried.
type StatusCheckError struct {
	Upload models.UploadHandle
	Err    error
}

func (e *StatusCheckError) Error() string {
	return fmt.Sprintf("checking upload %d: %v", e.Upload, e.Err)
}

func (e *StatusCheckError) Unwrap() error { return e.Err }

// StageOf maps an error from this package to the stage that produced it.
func StageOf(err error) models.Stage {
	var (
		pageErr     *PageFetchError
		downloadErr *DownloadError
		submitErr   *UploadSubmitError
		failedErr   *UploadFailedError
		timeoutErr  *UploadTimeoutError
		checkErr    *StatusCheckError
	)
	switch {
	case err == nil:
		return models.StageNone
	case errors.As(err, &pageErr):
		return models.StageFetchPage
	case errors.As(err, &downloadErr):
		return models.StageDownload
	case errors.As(err, &submitErr):
		return models.StageUpload
	case errors.As(err, &timeoutErr):
		return models.StagePollTimeout
	case errors.As(err, &failedErr), errors.As(err, &checkErr):
		return models.StagePollFailed
	default:
		return models.StageNone
	}
}

package models

import (
	"fmt"
	"io"
)

// UploadHandle is the identifier Strava assigns to an accepted upload.
type UploadHandle int64

func (h UploadHandle) String() string { return fmt.Sprintf("%d", int64(h)) }

// UploadRequest carries a tour's content and metadata to the destination.
type UploadRequest struct {
	ExternalID   string
	Name         string
	ActivityType string
	DataType     string
	Content      io.Reader
}

// NewUploadRequest builds the upload for a tour from its GPX content.
func NewUploadRequest(t Tour, content io.Reader) UploadRequest {
	return UploadRequest{
		ExternalID:   t.ExternalID(),
		Name:         t.Name,
		ActivityType: t.Sport.ActivityType(),
		DataType:     "gpx",
		Content:      content,
	}
}

// UploadStatus is Strava's upload resource.
//
// See https://developers.strava.com/docs/reference/#api-models-Upload
type UploadStatus struct {
	ID         int64   `json:"id"`
	IDStr      string  `json:"id_str"`
	Status     string  `json:"status"`
	Error      *string `json:"error"`
	ExternalID *string `json:"external_id"`
	ActivityID *int64  `json:"activity_id"`
}

// Handle returns the upload's handle.
func (s UploadStatus) Handle() UploadHandle { return UploadHandle(s.ID) }

// UploadStateKind enumerates the terminal and non-terminal upload states.
type UploadStateKind int

const (
	UploadInProgress UploadStateKind = iota
	UploadSucceeded
	UploadFailed
)

func (k UploadStateKind) String() string {
	switch k {
	case UploadInProgress:
		return "in_progress"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return ""
	}
}

// UploadState is the classified form of an [UploadStatus].
// Message is only set for [UploadFailed].
type UploadState struct {
	Kind    UploadStateKind
	Message string
}

// Terminal reports whether no further polling is needed.
func (s UploadState) Terminal() bool { return s.Kind != UploadInProgress }

// State classifies the status. The error field wins over every other field;
// without an error, a missing external id means Strava is still processing.
func (s UploadStatus) State() UploadState {
	if s.Error != nil && *s.Error != "" {
		return UploadState{Kind: UploadFailed, Message: *s.Error}
	}
	if s.ExternalID == nil || *s.ExternalID == "" {
		return UploadState{Kind: UploadInProgress}
	}
	return UploadState{Kind: UploadSucceeded}
}

package models

// Stage names the step of a tour transfer that produced an outcome.
type Stage int

const (
	StageNone Stage = iota
	StageFetchPage
	StageDownload
	StageUpload
	StagePollTimeout
	StagePollFailed
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return ""
	case StageFetchPage:
		return "fetch-page"
	case StageDownload:
		return "download"
	case StageUpload:
		return "upload"
	case StagePollTimeout:
		return "poll-timeout"
	case StagePollFailed:
		return "poll-failed"
	default:
		return "unknown"
	}
}

// ParseStage is the inverse of [Stage.String].
func ParseStage(s string) Stage {
	for _, st := range []Stage{StageFetchPage, StageDownload, StageUpload, StagePollTimeout, StagePollFailed} {
		if st.String() == s {
			return st
		}
	}
	return StageNone
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(text []byte) error {
	*s = ParseStage(string(text))
	return nil
}

// SyncOutcome is the result of one unit of work in a sync run.
//
// A nil Err means the tour was uploaded and confirmed. A page-fetch failure is
// reported as an outcome with [StageFetchPage] and a zero TourID.
type SyncOutcome struct {
	TourID   uint32
	TourName string
	Upload   UploadHandle
	Stage    Stage
	Err      error
}

// Succeeded reports whether the outcome is a success.
func (o SyncOutcome) Succeeded() bool { return o.Err == nil }

// NewSuccess builds a successful outcome.
func NewSuccess(t Tour, h UploadHandle) SyncOutcome {
	return SyncOutcome{TourID: t.ID, TourName: t.Name, Upload: h}
}

// NewFailure builds a failed outcome for the given stage.
func NewFailure(t Tour, h UploadHandle, stage Stage, err error) SyncOutcome {
	return SyncOutcome{TourID: t.ID, TourName: t.Name, Upload: h, Stage: stage, Err: err}
}

package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// MaxErrorBodySize bounds the response body kept on an [HTTPError].
const MaxErrorBodySize = 500

// HTTPError is a non-success response from a remote API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s (status %d): %s", e.URL, e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s (status %d)", e.URL, e.Status, e.StatusCode)
}

// StreamReadError reports a tour download that failed after the response started.
type StreamReadError struct {
	TourID uint32
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("reading content of tour %d: %v", e.TourID, e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }

// IsStatus reports whether err is an [HTTPError] with the given status code.
func IsStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// checkResponse drains and closes the body of a non-2xx response and returns it as an [*HTTPError].
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize+1))
	resp.Body.Close()

	he := &HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	if err == nil {
		he.Body = truncate(string(body), MaxErrorBodySize)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		he.URL = resp.Request.URL.Redacted()
	}
	return he
}

// streamReader tags read failures with the tour they belong to.
type streamReader struct {
	tourID uint32
	body   io.ReadCloser
}

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && err != io.EOF {
		return n, &StreamReadError{TourID: r.tourID, Err: err}
	}
	return n, err
}

func (r *streamReader) Close() error { return r.body.Close() }

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

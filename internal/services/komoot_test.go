package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKomootServer(t *testing.T, mux *http.ServeMux) (*KomootService, *httptest.Server) {
	t.Helper()
	mux.HandleFunc("GET /v006/account/email/{email}/", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rider@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"email":    "rider@example.com",
			"username": "1234567",
			"password": "session-token",
			"user":     map[string]any{"displayname": "Rider"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewKomootService(shared.KomootConfig{BaseURL: srv.URL}, srv.Client()), srv
}

func authenticatedKomoot(t *testing.T, mux *http.ServeMux) *KomootService {
	t.Helper()
	k, _ := newKomootServer(t, mux)
	_, err := k.Authenticate(context.Background(), "rider@example.com", "secret")
	require.NoError(t, err)
	return k
}

func TestKomootService_Authenticate(t *testing.T) {
	t.Run("Valid Credentials", func(t *testing.T) {
		k, _ := newKomootServer(t, http.NewServeMux())

		user, err := k.Authenticate(context.Background(), "rider@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "1234567", user.UserID)
		assert.Equal(t, "session-token", user.Token)
		assert.Equal(t, "Rider", user.DisplayName)
		assert.Same(t, user, k.User())
	})

	t.Run("Wrong Password", func(t *testing.T) {
		k, _ := newKomootServer(t, http.NewServeMux())

		_, err := k.Authenticate(context.Background(), "rider@example.com", "nope")
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
		assert.Nil(t, k.User())
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		k := NewKomootService(shared.KomootConfig{}, nil)
		_, err := k.Authenticate(context.Background(), "", "")
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})
}

func TestKomootService_FetchPage(t *testing.T) {
	start := time.Date(2024, 5, 1, 6, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	t.Run("Decodes Listing", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v007/users/1234567/tours/", func(w http.ResponseWriter, r *http.Request) {
			user, pass, _ := r.BasicAuth()
			assert.Equal(t, "rider@example.com", user)
			assert.Equal(t, "session-token", pass)

			q := r.URL.Query()
			assert.Equal(t, "25", q.Get("limit"))
			assert.Equal(t, "1", q.Get("page"))
			assert.Equal(t, KomootRecordedTours, q.Get("type"))
			assert.Equal(t, "2024-05-01T04:30:00.000Z", q.Get("start_date"))

			fmt.Fprint(w, `{
				"_embedded": {"tours": [
					{"id": 101, "name": "Ridge loop", "status": "private", "type": "tour_recorded", "date": "2024-05-02T08:00:00.000+02:00", "sport": "hike"},
					{"id": 102, "name": "Commute", "status": "private", "type": "tour_recorded", "date": "2024-05-03T07:00:00.000+02:00", "sport": "paragliding"}
				]},
				"page": {"size": 25, "totalElements": 52, "totalPages": 3, "number": 1}
			}`)
		})
		k := authenticatedKomoot(t, mux)

		page, err := k.FetchPage(context.Background(), start, 1, 25)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Index)
		assert.Equal(t, 3, page.TotalPages)
		require.Len(t, page.Tours, 2)
		assert.Equal(t, uint32(101), page.Tours[0].ID)
		assert.Equal(t, models.SportHike, page.Tours[0].Sport)
		assert.Equal(t, models.SportOther, page.Tours[1].Sport)
	})

	t.Run("Empty Listing", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v007/users/1234567/tours/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"page": {"size": 25, "totalElements": 0, "totalPages": 0, "number": 0}}`)
		})
		k := authenticatedKomoot(t, mux)

		page, err := k.FetchPage(context.Background(), start, 0, 25)
		require.NoError(t, err)
		assert.Zero(t, page.TotalPages)
		assert.Empty(t, page.Tours)
	})

	t.Run("Server Error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v007/users/1234567/tours/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		})
		k := authenticatedKomoot(t, mux)

		_, err := k.FetchPage(context.Background(), start, 0, 25)
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadGateway, he.StatusCode)
		assert.Contains(t, he.Body, "upstream unavailable")
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		k := NewKomootService(shared.KomootConfig{}, nil)
		_, err := k.FetchPage(context.Background(), start, 0, 25)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})
}

func TestKomootService_Download(t *testing.T) {
	const gpx = `<?xml version="1.0"?><gpx version="1.1"><trk><name>Ridge loop</name></trk></gpx>`

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v007/tours/{file}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("file") {
		case "101.gpx":
			w.Header().Set("Content-Type", "application/gpx+xml")
			fmt.Fprint(w, gpx)
		case "102.gpx":
			w.Header().Set("Content-Length", "4096")
			fmt.Fprint(w, "<gpx>")
		default:
			http.NotFound(w, r)
		}
	})
	k := authenticatedKomoot(t, mux)

	t.Run("Streams Content", func(t *testing.T) {
		rc, err := k.Download(context.Background(), 101)
		require.NoError(t, err)
		defer rc.Close()

		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, gpx, string(body))
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := k.Download(context.Background(), 999)
		assert.True(t, IsStatus(err, http.StatusNotFound), "expected 404 HTTPError, got %v", err)
	})

	t.Run("Broken Stream", func(t *testing.T) {
		rc, err := k.Download(context.Background(), 102)
		require.NoError(t, err)
		defer rc.Close()

		_, err = io.ReadAll(rc)
		var sre *StreamReadError
		require.ErrorAs(t, err, &sre)
		assert.Equal(t, uint32(102), sre.TourID)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

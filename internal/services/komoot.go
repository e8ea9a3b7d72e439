package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"golang.org/x/time/rate"
)

const (
	komootBaseURL = "https://api.komoot.de"

	// KomootRecordedTours filters listings to tours that were recorded rather than planned.
	KomootRecordedTours = "tour_recorded"

	// KomootDateLayout is the start_date format the listing endpoint expects.
	KomootDateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// KomootUser is the account context returned by the basic-auth handshake.
// Token replaces the password on every later request.
type KomootUser struct {
	Email       string `json:"email"`
	UserID      string `json:"username"`
	Token       string `json:"password"`
	DisplayName string `json:"-"`
}

type komootAccount struct {
	KomootUser
	User struct {
		DisplayName string `json:"displayname"`
	} `json:"user"`
}

type komootTourListing struct {
	Embedded *struct {
		Tours []models.Tour `json:"tours"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

// KomootService implements [Source] against the Komoot v007 API.
type KomootService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	user       *KomootUser
}

// NewKomootService creates an unauthenticated client. A nil client gets a 30 second timeout.
func NewKomootService(cfg shared.KomootConfig, client *http.Client) *KomootService {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = komootBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &KomootService{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}
}

func (k *KomootService) Name() string {
	return "Komoot"
}

// Authenticate exchanges the account email and password for a user id and token.
func (k *KomootService) Authenticate(ctx context.Context, email, password string) (*KomootUser, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: komoot email and password", shared.ErrMissingCredentials)
	}

	endpoint := fmt.Sprintf("%s/v006/account/email/%s/", k.baseURL, url.PathEscape(email))
	var account komootAccount
	if err := k.doRequest(ctx, endpoint, email, password, &account); err != nil {
		if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	user := account.KomootUser
	user.DisplayName = account.User.DisplayName
	k.user = &user
	return k.user, nil
}

// User returns the authenticated account, or nil before [KomootService.Authenticate].
func (k *KomootService) User() *KomootUser {
	return k.user
}

// FetchPage lists recorded tours started at or after start.
func (k *KomootService) FetchPage(ctx context.Context, start time.Time, page, size int) (*models.TourPage, error) {
	if k.user == nil {
		return nil, shared.ErrNotAuthenticated
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(size))
	q.Set("page", strconv.Itoa(page))
	q.Set("type", KomootRecordedTours)
	q.Set("start_date", start.UTC().Format(KomootDateLayout))

	endpoint := fmt.Sprintf("%s/v007/users/%s/tours/?%s", k.baseURL, url.PathEscape(k.user.UserID), q.Encode())

	var listing komootTourListing
	if err := k.doRequest(ctx, endpoint, k.user.Email, k.user.Token, &listing); err != nil {
		return nil, err
	}

	result := &models.TourPage{Index: page, TotalPages: listing.Page.TotalPages}
	if listing.Embedded != nil {
		result.Tours = listing.Embedded.Tours
	}
	return result, nil
}

// Download streams the GPX export of a tour.
func (k *KomootService) Download(ctx context.Context, tourID uint32) (io.ReadCloser, error) {
	if k.user == nil {
		return nil, shared.ErrNotAuthenticated
	}

	endpoint := fmt.Sprintf("%s/v007/tours/%d.gpx", k.baseURL, tourID)
	resp, err := k.send(ctx, endpoint, k.user.Email, k.user.Token)
	if err != nil {
		return nil, err
	}
	return &streamReader{tourID: tourID, body: resp.Body}, nil
}

// send performs a rate-limited, basic-authenticated GET. The caller owns the body of a successful response.
func (k *KomootService) send(ctx context.Context, endpoint, user, secret string) (*http.Response, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(user, secret)
	req.Header.Set("Accept", "application/hal+json, application/json, */*")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (k *KomootService) doRequest(ctx context.Context, endpoint, user, secret string, result any) error {
	resp, err := k.send(ctx, endpoint, user, secret)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

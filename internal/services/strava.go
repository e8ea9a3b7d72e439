package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	stravaBaseURL = "https://www.strava.com"

	// StravaScope grants read access and permission to create activities.
	StravaScope = "read,activity:write"
)

// StravaService implements [Destination] against the Strava v3 API.
// Uses [oauth2] with the refresh-token grant; the authorized client refreshes expired access tokens itself.
type StravaService struct {
	config     *oauth2.Config
	baseURL    string
	baseClient *http.Client
	limiter    *rate.Limiter

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// NewStravaService creates a Strava client from the application credentials.
// A nil client gets a two minute timeout, which also bounds a streamed upload.
func NewStravaService(cfg shared.StravaConfig, client *http.Client) (*StravaService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing strava client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing strava client_secret", shared.ErrMissingCredentials)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = stravaBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	return &StravaService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{StravaScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth/authorize",
				TokenURL:  baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:    baseURL,
		baseClient: client,
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (s *StravaService) Name() string {
	return "Strava"
}

// AuthURL returns the authorization page the athlete approves in a browser.
func (s *StravaService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Exchange trades an authorization code for a token and authorizes the client with it.
func (s *StravaService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.authorize(ctx, token)
	return token, nil
}

// Authenticate obtains an access token from a refresh token.
func (s *StravaService) Authenticate(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	s.authorize(ctx, token)
	return nil
}

// Token returns the current token. Strava rotates refresh tokens, so callers persist RefreshToken after use.
func (s *StravaService) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	src := s.tokenSource
	s.mu.Unlock()

	if src == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return src.Token()
}

func (s *StravaService) authorize(ctx context.Context, token *oauth2.Token) {
	octx := s.oauthContext(ctx)
	src := oauth2.ReuseTokenSource(token, s.config.TokenSource(octx, token))

	client := oauth2.NewClient(octx, src)
	client.Timeout = s.baseClient.Timeout

	s.mu.Lock()
	s.tokenSource = src
	s.httpClient = client
	s.mu.Unlock()
}

// oauthContext detaches ctx from cancellation so later refreshes outlive the call that authorized the client.
func (s *StravaService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.baseClient)
}

func (s *StravaService) client() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpClient == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.httpClient, nil
}

// Submit streams the upload as multipart/form-data to POST /api/v3/uploads.
//
// Content is copied into the request body as it is sent; it is never buffered whole.
func (s *StravaService) Submit(ctx context.Context, upload models.UploadRequest) (models.UploadHandle, error) {
	client, err := s.client()
	if err != nil {
		return 0, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, upload))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v3/uploads", pr)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return 0, err
	}

	var status models.UploadStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, fmt.Errorf("failed to decode upload: %w", err)
	}
	return status.Handle(), nil
}

// Status fetches GET /api/v3/uploads/{id}.
func (s *StravaService) Status(ctx context.Context, h models.UploadHandle) (*models.UploadStatus, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/uploads/%d", s.baseURL, int64(h)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var status models.UploadStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode upload status: %w", err)
	}
	return &status, nil
}

func writeUploadForm(w *multipart.Writer, upload models.UploadRequest) error {
	fields := [][2]string{
		{"data_type", upload.DataType},
		{"activity_type", upload.ActivityType},
		{"name", upload.Name},
		{"external_id", upload.ExternalID},
		{"trainer", "0"},
		{"commute", "0"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	part, err := w.CreateFormFile("file", upload.ExternalID+"."+upload.DataType)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return err
	}
	return w.Close()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/stramoot/internal/shared"
	"golang.org/x/oauth2"
)

// CodeExchanger trades an authorization code for a token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	Scope []string
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the OAuth2 authorization code callback.
type OAuthHandler struct {
	exchanger   CodeExchanger
	state       string
	path        string
	scopes      []string
	timeout     time.Duration
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler serving path. The state token should be
// cryptographically random. Every scope in required must be granted.
func NewOAuthHandler(exchanger CodeExchanger, state, path string, required ...string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		exchanger:  exchanger,
		state:      state,
		path:       path,
		scopes:     required,
		timeout:    30 * time.Second,
		resultChan: make(chan OAuthResult, 1),
	}
}

// CallbackPath extracts the path of a redirect URI, defaulting to /callback.
func CallbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return u.Path
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the OAuth callback request.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: authorization denied: %s", shared.ErrAuthFailed, query.Get("error"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	granted := ParseScope(query.Get("scope"))
	if missing := missingScopes(h.scopes, granted); len(missing) > 0 {
		err := fmt.Errorf("%w: missing scopes %s", shared.ErrAuthFailed, strings.Join(missing, ","))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Required permissions were not granted", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token, err := h.exchanger.Exchange(ctx, code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token, Scope: granted})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// Wait blocks until the callback delivers a result or ctx is done.
func (h *OAuthHandler) Wait(ctx context.Context) (*OAuthResult, error) {
	select {
	case res, ok := <-h.resultChan:
		if !ok {
			return nil, errors.New("callback result already consumed")
		}
		if res.err != nil {
			return nil, res.err
		}
		return &res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: no callback received: %w", shared.ErrTimeout, ctx.Err())
	}
}

// ParseScope splits Strava's comma separated scope list.
func ParseScope(s string) []string {
	var scopes []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			scopes = append(scopes, part)
		}
	}
	return scopes
}

func missingScopes(required, granted []string) []string {
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}
	var missing []string
	for _, s := range required {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Strava connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #fc4c02; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Strava connected</h1>
        <p>stramoot can now upload your tours. You can close this window.</p>
    </div>
</body>
</html>
`

package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
)

// Linker completes the authorization code grant for a user.
type Linker interface {
	ExchangeAuthorizationCode(ctx context.Context, userKey, code string) (*models.OAuthToken, error)
}

// OAuthResult contains the result of one callback.
//
// When the state was issued without a user the code is returned unexchanged in Code.
type OAuthResult struct {
	UserKey string
	Token   *models.OAuthToken
	Code    string
	err     error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the provider's redirect back to /callback.
//
// It resolves the state to the user it was issued for and links that user's account.
// A single-use handler (the CLI loopback flow) rejects every callback after the first.
type OAuthHandler struct {
	states      *StateStore
	linker      Linker
	singleUse   bool
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
	logger      *log.Logger
}

// NewOAuthHandler creates a callback handler for the long running server.
func NewOAuthHandler(states *StateStore, linker Linker, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		states:     states,
		linker:     linker,
		resultChan: make(chan OAuthResult, 1),
		logger:     shared.WithLogger(logger, "handler", "oauth"),
	}
}

// NewLoopbackHandler creates a handler that accepts exactly one callback and reports it on [OAuthHandler.Result].
func NewLoopbackHandler(states *StateStore, linker Linker, logger *log.Logger) *OAuthHandler {
	h := NewOAuthHandler(states, linker, logger)
	h.singleUse = true
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the state, exchanges the code for the bound user and renders a confirmation page.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, fmt.Errorf("%w: method %s not allowed", shared.ErrInvalidInput, r.Method), http.StatusMethodNotAllowed)
		return
	}

	if h.singleUse {
		h.mu.Lock()
		if h.callbackHit {
			h.mu.Unlock()
			renderPage(w, http.StatusBadRequest, "Callback already processed", "This authorization has already been used.")
			return
		}
		h.callbackHit = true
		h.mu.Unlock()
	}

	q := r.URL.Query()
	userKey, ok := h.states.Consume(q.Get("state"))
	if !ok {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		renderPage(w, http.StatusBadRequest, "Authorization failed", "The authorization link is invalid or has expired.")
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s %s", shared.ErrInvalidCode, q.Get("error"), q.Get("error_description"))
		h.Send(OAuthResult{UserKey: userKey, err: err})
		renderPage(w, http.StatusBadRequest, "Authorization failed", "Spotify did not grant access.")
		return
	}

	if userKey == "" {
		h.Send(OAuthResult{Code: code})
		renderPage(w, http.StatusOK, "Authorization code received", "Submit this code to /spotify-authenticate with your email address: "+code)
		return
	}

	tok, err := h.linker.ExchangeAuthorizationCode(r.Context(), userKey, code)
	if err != nil {
		h.logger.Warn("callback exchange failed", "user", userKey, "error", err)
		h.Send(OAuthResult{UserKey: userKey, err: err})
		renderPage(w, shared.HTTPStatus(err), "Authorization failed", "Linking your Spotify account failed. Please try again.")
		return
	}

	h.Send(OAuthResult{UserKey: userKey, Token: tok})
	renderPage(w, http.StatusOK, "Authorization Successful", "You can close this window and return to SentiSounds.")
}

// Send delivers the first result and closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel. It receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

var page = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; color: {{if .OK}}#1DB954{{else}}#E22134{{end}}; }
        p { color: #666; margin: 0; word-break: break-all; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, struct {
		Title, Message string
		OK             bool
	}{title, message, status < 400})
}

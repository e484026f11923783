package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Opts configures [New].
type Opts struct {
	Config shared.ServerConfig
	API    *APIHandler
	OAuth  *OAuthHandler
	Logger *log.Logger
}

// New builds the HTTP server: API and OAuth callback routes behind recover, request id, logging and CORS middleware.
func New(opts Opts) *http.Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(
		Recover(logger),
		RequestID(),
		Logger(logger),
		CORS(opts.Config.AllowedOrigin),
	)
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess})
	}))
	if opts.API != nil {
		router.Handler(opts.API)
	}
	if opts.OAuth != nil {
		router.Handler(opts.OAuth)
	}

	return &http.Server{
		Addr:              opts.Config.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

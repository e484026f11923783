package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/desertthunder/sentisounds/internal/tasks"
	"github.com/go-playground/validator/v10"
)

// Recommender runs the prompt to tracks pipeline.
type Recommender interface {
	Recommend(ctx context.Context, req tasks.RecommendRequest, progress chan<- tasks.ProgressUpdate) (*tasks.Recommendation, error)
}

// AccountLinker manages a user's link to their Spotify account.
type AccountLinker interface {
	Linker
	IsLinked(ctx context.Context, userKey string) bool
	Disconnect(ctx context.Context, userKey string) error
}

// AuthURLer builds consent page URLs.
type AuthURLer interface {
	AuthURL(state string) string
}

// Liker records likes.
type Liker interface {
	Like(ctx context.Context, userKey, trackID string) error
	Unlike(ctx context.Context, userKey, trackID string) error
}

// Exporter creates playlists, defaulting to the liked set.
type Exporter interface {
	ExportLiked(ctx context.Context, job models.ExportJob, progress chan<- tasks.ProgressUpdate) (*tasks.ExportResult, error)
}

// APIDeps are the collaborators of [APIHandler].
type APIDeps struct {
	Recommender Recommender
	Accounts    AccountLinker
	Auth        AuthURLer
	States      *StateStore
	Likes       Liker
	Exporter    Exporter
	Users       tasks.UserLookup
	Logger      *log.Logger
}

// APIHandler serves the JSON endpoints.
type APIHandler struct {
	deps     APIDeps
	validate *validator.Validate
	logger   *log.Logger
}

// NewAPIHandler creates an [APIHandler].
func NewAPIHandler(deps APIDeps) *APIHandler {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	if deps.States == nil {
		deps.States = NewStateStore(0)
	}
	return &APIHandler{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   shared.WithLogger(deps.Logger, "handler", "api"),
	}
}

const (
	routeRecommend    = "/recommend-songs"
	routeAuthLink     = "/spotify-auth-link"
	routeAuthenticate = "/spotify-authenticate"
	routeCheckAuth    = "/spotify-check-authentication"
	routeLike         = "/spotify-like-song"
	routeUnlike       = "/spotify-unlike-song"
	routeExport       = "/export-playlist"
	routeDisconnect   = "/spotify-disconnect"
)

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		routeRecommend,
		routeAuthLink,
		routeAuthenticate,
		routeCheckAuth,
		routeLike,
		routeUnlike,
		routeExport,
		routeDisconnect,
	}
}

type route struct {
	method string
	serve  func(w http.ResponseWriter, r *http.Request, p params) error
}

func (h *APIHandler) routes() map[string]route {
	return map[string]route{
		routeRecommend:    {http.MethodPost, h.recommend},
		routeAuthLink:     {http.MethodGet, h.authLink},
		routeAuthenticate: {http.MethodPost, h.authenticate},
		routeCheckAuth:    {http.MethodGet, h.checkAuth},
		routeLike:         {http.MethodPost, h.like},
		routeUnlike:       {http.MethodPost, h.unlike},
		routeExport:       {http.MethodPost, h.export},
		routeDisconnect:   {http.MethodPost, h.disconnect},
	}
}

// ServeHTTP dispatches on path and method. Inputs are read from the query string, a form body or a JSON body.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.routes()[r.URL.Path]
	if !ok {
		writeError(w, fmt.Errorf("%w: no route for %s", shared.ErrInvalidInput, r.URL.Path), http.StatusNotFound)
		return
	}
	allowMethods(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := readParams(r)
		if err != nil {
			writeError(w, err, 0)
			return
		}
		if err := rt.serve(w, r, p); err != nil {
			if shared.Kind(err) == shared.KindInternal {
				h.logger.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
			}
			writeError(w, err, 0)
		}
	}), rt.method).ServeHTTP(w, r)
}

type recommendInput struct {
	Prompt          string `validate:"required"`
	PopularityFloor *int   `validate:"omitempty,min=0,max=100"`
	Email           string `validate:"omitempty,email"`
}

func (h *APIHandler) recommend(w http.ResponseWriter, r *http.Request, p params) error {
	in := recommendInput{Prompt: p.get("prompt"), Email: p.get("email_address")}
	if raw := p.get("popularity_floor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: popularity_floor must be an integer", shared.ErrInvalidInput)
		}
		in.PopularityFloor = &n
	}
	if err := h.check(in); err != nil {
		return err
	}

	rec, err := h.deps.Recommender.Recommend(r.Context(), tasks.RecommendRequest{
		Prompt:          in.Prompt,
		UserKey:         in.Email,
		PopularityFloor: in.PopularityFloor,
	}, nil)
	if err != nil {
		return err
	}

	failed := make([]string, 0, len(rec.Failures))
	for _, f := range rec.Failures {
		failed = append(failed, f.Genre)
	}
	songs := rec.Tracks
	if songs == nil {
		songs = []models.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        statusSuccess,
		"genres":        rec.Genres,
		"songs":         songs,
		"failed_genres": failed,
	})
	return nil
}

type userInput struct {
	Email string `validate:"required,email"`
}

func (h *APIHandler) authLink(w http.ResponseWriter, r *http.Request, p params) error {
	email := p.get("email_address")
	if email != "" {
		if err := h.check(userInput{Email: email}); err != nil {
			return err
		}
		if err := h.requireUser(r.Context(), email); err != nil {
			return err
		}
	}

	state := h.deps.States.Issue(email)
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess, "url": h.deps.Auth.AuthURL(state)})
	return nil
}

type authenticateInput struct {
	Email string `validate:"required,email"`
	Code  string `validate:"required"`
}

func (h *APIHandler) authenticate(w http.ResponseWriter, r *http.Request, p params) error {
	in := authenticateInput{Email: p.get("email_address"), Code: p.get("code")}
	if err := h.check(in); err != nil {
		return err
	}
	if err := h.requireUser(r.Context(), in.Email); err != nil {
		return err
	}
	if _, err := h.deps.Accounts.ExchangeAuthorizationCode(r.Context(), in.Email, in.Code); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess})
	return nil
}

func (h *APIHandler) checkAuth(w http.ResponseWriter, r *http.Request, p params) error {
	in := userInput{Email: p.get("email_address")}
	if err := h.check(in); err != nil {
		return err
	}
	if err := h.requireUser(r.Context(), in.Email); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           statusSuccess,
		"is_authenticated": h.deps.Accounts.IsLinked(r.Context(), in.Email),
	})
	return nil
}

type songInput struct {
	Email  string `validate:"required,email"`
	SongID string `validate:"required"`
}

func (h *APIHandler) like(w http.ResponseWriter, r *http.Request, p params) error {
	return h.songAction(w, r, p, h.deps.Likes.Like)
}

func (h *APIHandler) unlike(w http.ResponseWriter, r *http.Request, p params) error {
	return h.songAction(w, r, p, h.deps.Likes.Unlike)
}

func (h *APIHandler) songAction(w http.ResponseWriter, r *http.Request, p params, action func(context.Context, string, string) error) error {
	in := songInput{Email: p.get("email_address"), SongID: p.get("song_id")}
	if err := h.check(in); err != nil {
		return err
	}
	if err := h.requireUser(r.Context(), in.Email); err != nil {
		return err
	}
	if err := action(r.Context(), in.Email, in.SongID); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess})
	return nil
}

type exportInput struct {
	Email       string   `validate:"required,email"`
	SongIDs     []string `validate:"dive,required"`
	Name        string   `validate:"max=100"`
	Description string   `validate:"max=300"`
}

func (h *APIHandler) export(w http.ResponseWriter, r *http.Request, p params) error {
	in := exportInput{
		Email:       p.get("email_address"),
		SongIDs:     strings.Fields(p.get("song_ids")),
		Name:        p.get("playlist_name"),
		Description: p.get("playlist_description"),
	}
	if err := h.check(in); err != nil {
		return err
	}
	if err := h.requireUser(r.Context(), in.Email); err != nil {
		return err
	}

	res, err := h.deps.Exporter.ExportLiked(r.Context(), models.ExportJob{
		UserKey:     in.Email,
		TrackIDs:    in.SongIDs,
		Name:        in.Name,
		Description: in.Description,
	}, nil)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       statusSuccess,
		"playlist_url": res.URL,
		"tracks_added": res.Added,
	})
	return nil
}

func (h *APIHandler) disconnect(w http.ResponseWriter, r *http.Request, p params) error {
	in := userInput{Email: p.get("email_address")}
	if err := h.check(in); err != nil {
		return err
	}
	if err := h.requireUser(r.Context(), in.Email); err != nil {
		return err
	}
	if err := h.deps.Accounts.Disconnect(r.Context(), in.Email); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess})
	return nil
}

// requireUser rejects identities unknown to the auth store.
func (h *APIHandler) requireUser(ctx context.Context, email string) error {
	if h.deps.Users == nil {
		return nil
	}
	ok, err := h.deps.Users.LookupUser(ctx, shared.NormalizeUserKey(email))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, email)
	}
	return nil
}

// check runs struct validation and folds field errors into one input error.
func (h *APIHandler) check(in any) error {
	err := h.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
}

var fieldNames = map[string]string{
	"Prompt":          "prompt",
	"PopularityFloor": "popularity_floor",
	"Email":           "email_address",
	"Code":            "code",
	"SongID":          "song_id",
	"SongIDs":         "song_ids",
	"Name":            "playlist_name",
	"Description":     "playlist_description",
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldNames[fe.StructField()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be an email address"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", name, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

// params holds request inputs merged from the query string and the body.
type params map[string]string

func (p params) get(key string) string {
	return strings.TrimSpace(p[key])
}

func readParams(r *http.Request) (params, error) {
	p := params{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	if r.Body == nil || r.ContentLength == 0 {
		return p, nil
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidInput, err)
		}
		for k, v := range body {
			switch val := v.(type) {
			case nil:
			case string:
				p[k] = val
			case []any:
				parts := make([]string, 0, len(val))
				for _, item := range val {
					parts = append(parts, fmt.Sprint(item))
				}
				p[k] = strings.Join(parts, " ")
			default:
				p[k] = fmt.Sprint(val)
			}
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: malformed form body: %v", shared.ErrInvalidInput, err)
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	}
	return p, nil
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSafetyMargin is how long before expiry a token is refreshed.
	DefaultSafetyMargin = time.Minute
	defaultTokenTimeout = 10 * time.Second
	defaultTokenLife    = time.Hour
)

// TokenManager owns per-user OAuth tokens.
//
// Refreshes for one user are collapsed into a single provider call; different users refresh independently.
// Refresh-and-store, linking and disconnecting hold the same per-user lock, so none of them overwrites another.
type TokenManager struct {
	store   TokenStore
	auth    TokenExchanger
	margin  time.Duration
	timeout time.Duration
	flight  singleflight.Group
	locks   sync.Map
	now     func() time.Time
	logger  *log.Logger
}

// TokenManagerOpts configures a [TokenManager].
type TokenManagerOpts struct {
	Store   TokenStore
	Auth    TokenExchanger
	Margin  time.Duration
	Timeout time.Duration
	Logger  *log.Logger
}

// NewTokenManager creates a [TokenManager].
func NewTokenManager(opts TokenManagerOpts) *TokenManager {
	if opts.Margin <= 0 {
		opts.Margin = DefaultSafetyMargin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTokenTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &TokenManager{
		store:   opts.Store,
		auth:    opts.Auth,
		margin:  opts.Margin,
		timeout: opts.Timeout,
		now:     time.Now,
		logger:  shared.WithLogger(opts.Logger, "component", "tokens"),
	}
}

// GetValidToken returns an access token that stays valid for at least the safety margin, refreshing it if needed.
//
// A caller that gives up while a refresh is in flight returns early; the refresh itself completes for the others.
func (m *TokenManager) GetValidToken(ctx context.Context, userKey string) (string, error) {
	key := shared.NormalizeUserKey(userKey)

	tok, err := m.load(ctx, key)
	if err != nil {
		return "", err
	}
	if tok.ValidFor(m.now(), m.margin) {
		return tok.AccessToken, nil
	}

	ch := m.flight.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(rctx, key)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for token refresh: %v", shared.ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refresh runs once per user at a time. The stored token is re-read under the user lock, so a refresh
// that just finished is reused and a link or disconnect that landed first is respected.
func (m *TokenManager) refresh(ctx context.Context, key string) (string, error) {
	unlock := m.lock(key)
	defer unlock()

	tok, err := m.load(ctx, key)
	if err != nil {
		return "", err
	}
	if tok.ValidFor(m.now(), m.margin) {
		return tok.AccessToken, nil
	}

	m.logger.Debug("refreshing token", "user", key, "expires_at", tok.ExpiresAt)
	fresh, err := m.auth.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		if errors.Is(err, shared.ErrAuthExpired) {
			m.logger.Warn("refresh token rejected, unlinking user", "user", key)
			if derr := m.store.Delete(ctx, key); derr != nil {
				m.logger.Error("failed to clear rejected token", "user", key, "error", derr)
			}
			return "", err
		}
		return "", shared.WrapUpstream("token refresh", err)
	}

	next := m.toModel(key, fresh, tok.RefreshToken)
	if err := m.store.Save(ctx, next); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}
	return next.AccessToken, nil
}

// ExchangeAuthorizationCode links the user by trading an authorization code for their first token.
func (m *TokenManager) ExchangeAuthorizationCode(ctx context.Context, userKey, code string) (*models.OAuthToken, error) {
	key := shared.NormalizeUserKey(userKey)
	if key == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}

	tok, err := m.auth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	linked := m.toModel(key, tok, "")
	unlock := m.lock(key)
	defer unlock()
	if err := m.store.Save(ctx, linked); err != nil {
		return nil, err
	}
	m.flight.Forget(key)
	m.logger.Info("linked account", "user", key)
	return &linked, nil
}

// IsLinked reports whether the user holds a token that is usable now or can be refreshed. It never refreshes.
func (m *TokenManager) IsLinked(ctx context.Context, userKey string) bool {
	tok, err := m.store.Get(ctx, shared.NormalizeUserKey(userKey))
	if err != nil {
		if !errors.Is(err, shared.ErrTokenNotFound) {
			m.logger.Warn("token lookup failed", "user", userKey, "error", err)
		}
		return false
	}
	return tok.RefreshToken != "" || tok.ValidFor(m.now(), 0)
}

// Disconnect clears the user's token.
func (m *TokenManager) Disconnect(ctx context.Context, userKey string) error {
	key := shared.NormalizeUserKey(userKey)
	unlock := m.lock(key)
	defer unlock()
	if err := m.store.Delete(ctx, key); err != nil {
		return err
	}
	m.flight.Forget(key)
	m.logger.Info("unlinked account", "user", key)
	return nil
}

// lock takes the user's token lock and returns its release.
func (m *TokenManager) lock(key string) func() {
	mu, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	l := mu.(*sync.Mutex)
	l.Lock()
	return l.Unlock
}

func (m *TokenManager) load(ctx context.Context, key string) (*models.OAuthToken, error) {
	tok, err := m.store.Get(ctx, key)
	if errors.Is(err, shared.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnlinked, key)
	}
	return tok, err
}

// toModel converts a provider token, carrying over the previous refresh token when none was issued.
func (m *TokenManager) toModel(key string, tok *oauth2.Token, prevRefresh string) models.OAuthToken {
	out := models.OAuthToken{
		UserKey:      key,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = prevRefresh
	}
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = m.now().Add(defaultTokenLife)
	}
	return out
}

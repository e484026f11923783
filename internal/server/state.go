package server

import (
	"time"

	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultStateTTL bounds how long an authorization link stays usable.
const DefaultStateTTL = 10 * time.Minute

// StateStore holds OAuth state values issued by the auth link endpoint, each bound to an optional user.
//
// A state can be consumed once.
type StateStore struct {
	pending *ttlcache.Cache[string, string]
	ttl     time.Duration
}

// NewStateStore creates a [StateStore]. A non-positive ttl uses [DefaultStateTTL].
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		pending: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		ttl: ttl,
	}
}

// Issue creates a state for userKey, which may be empty.
func (s *StateStore) Issue(userKey string) string {
	state := shared.GenerateID()
	s.pending.DeleteExpired()
	s.pending.Set(state, shared.NormalizeUserKey(userKey), ttlcache.DefaultTTL)
	return state
}

// Consume returns the user bound to state and forgets it. ok is false for unknown or expired states.
func (s *StateStore) Consume(state string) (userKey string, ok bool) {
	item, found := s.pending.GetAndDelete(state)
	if !found || item.IsExpired() {
		return "", false
	}
	return item.Value(), true
}

// Len returns the number of outstanding states.
func (s *StateStore) Len() int {
	s.pending.DeleteExpired()
	return s.pending.Len()
}

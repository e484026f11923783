// Package repositories implements SQLite persistence for the recommendation pipeline.
//
// Key Implementations:
//   - [UserRepository] : the auth/user store, keyed by normalized email address
//   - [TokenRepository] : one Spotify token per user, replaced wholesale
//   - [LikeRepository] : per-user liked track set with insertion order
//   - [VideoLinkRepository] : track id to video URL cache, including negative markers
//
// All writes that model set membership are idempotent (INSERT OR IGNORE, upserts, unconditional deletes).
package repositories

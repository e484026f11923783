// Package services implements clients for the external providers used by the recommendation pipeline.
//
// # Language Model
//
// [OpenAIService] sends the sanitized mood prompt to a chat completions endpoint in JSON mode and
// parses exactly five genres from the "genres" key of the reply.
//
// # Spotify
//
// [SpotifyAuth] owns the OAuth2 configuration: authorization URL, code exchange, refresh, and an
// application (client credentials) client for anonymous catalog access. [SpotifyClient] wraps
// [spotify.Client] for a single access token and exposes genre search, playlist creation, playlist
// population, and saved-track (library) changes.
//
// Token refresh is never automatic here; callers pass a token obtained from the token manager.
//
// # YouTube
//
// [YouTubeService] resolves a search key to a single video URL through the YouTube Data API.
//
// # Error Handling
//
// Provider failures are reported with the sentinels from the shared package:
//   - [shared.ErrAuthExpired] : the provider rejected the token or refresh token
//   - [shared.ErrRateLimited] : 429 or quota exhaustion
//   - [shared.ErrUpstreamUnavailable] : transport errors, timeouts, other non-2xx statuses
//   - [shared.ErrMalformedResponse] : the response violated the expected shape
//   - [shared.ErrInvalidCode] : an authorization code was rejected
package services

// Package tasks orchestrates the mood to playlist pipeline on top of the provider clients and repositories.
//
// # Core Operations
//
//  1. [RecommendationEngine.Recommend] : prompt to ranked tracks
//     - Derives five genres from the prompt
//     - Searches each genre concurrently (bounded, rate limited)
//     - Merges results with [Aggregate] and attaches video links
//
//  2. [InteractionStore] : idempotent like/unlike per user
//
//  3. [PlaylistExporter.Export] : creates a private playlist and adds tracks in batches
//
// # Tokens
//
// [TokenManager] hands out valid access tokens and refreshes them through a [singleflight.Group]
// keyed by user, so concurrent callers share one refresh. A rejected refresh token unlinks the user.
//
// # Partial Failure
//
// A failed genre search is recorded in [Recommendation.Failures] and does not fail the request unless
// every genre failed. A failed export batch leaves the playlist with the tracks added so far.
//
// # Progress Reporting
//
// Long operations accept an optional channel of [ProgressUpdate]. Updates use select with default
// so reporting never blocks.
//
// [singleflight.Group]: https://pkg.go.dev/golang.org/x/sync/singleflight#Group
package tasks

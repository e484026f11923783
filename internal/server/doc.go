// Package server provides HTTP routing, middleware, the JSON API and the OAuth callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [New] installs
// [Recover], [RequestID], [Logger] and [CORS].
//
// # API
//
// [APIHandler] serves the recommendation, linking, like and export endpoints. Inputs may come from the
// query string, a form body or a JSON body and are validated with go-playground/validator. Failures are
// written as {"status":"error","error":...,"kind":...} with a status derived from the error kind.
//
// # OAuth Callback Handler
//
// [OAuthHandler] consumes a state issued by [StateStore] and links the account of the user bound to it.
// The CLI uses a single-use variant on a temporary loopback server and waits on [OAuthHandler.Result].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

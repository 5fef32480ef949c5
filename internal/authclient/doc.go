// Package authclient is the HTTP client every morsel API call goes through.
//
// # Request Path
//
// Send classifies the request path with IsPublic. Public endpoints
// (/members, /login, /auth/reissue, matched by substring) are sent as is.
// Anything else gets "Authorization: Bearer <token>" with the token read
// from the TokenStore on every call, or no header when logged out. The
// underlying http.Client owns a cookie jar, so the refresh_token cookie
// set by login and reissue is returned to the server automatically. When
// the TokenStore is also a RefreshStore, that cookie is kept there
// instead of in memory and is only presented to /auth/reissue, so a new
// process can reissue with the credential an earlier one received.
//
// # Reissue Protocol
//
// A logical request moves through Phase values computed by NextPhase:
//
//	PhaseInitial --401, protected--> PhaseReissuing --ok--> PhaseRetried --> PhaseTerminal
//	     |                                 |
//	     +--anything else--> PhaseTerminal +--failed--> Logout, hook, *AuthError
//
// The reissue is a bodyless POST /auth/reissue without a bearer. On
// success the new token is persisted before the original request is sent
// again with the same body and X-Request-ID. The outcome of that retry is
// final: a second 401 is returned as an *UpstreamError, never another
// reissue. A reissue cut short by the caller's context returns a
// *TransportError and leaves the session alone.
//
// # Errors
//
//   - *TransportError: the request never completed
//   - *AuthError: reissue failed, session already cleared
//   - *UpstreamError: any other non-2xx, Code and Message from the body
//
// errors.Is(err, ErrUnauthorized) is true for an *AuthError and for a 401
// *UpstreamError.
//
// # Concurrency
//
// A Client is safe for concurrent use. By default concurrent 401s each
// run their own reissue. WithReissueCoalescing(true) makes them share one
// in-flight reissue, which keeps running when a single waiter gives up.
package authclient

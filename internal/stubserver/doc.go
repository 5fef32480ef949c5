// Package stubserver is a local stand-in for the foodcom backend, used by
// the morsel-stub command and by end-to-end tests.
//
// It implements the same routes under /api: signup, login, token reissue,
// the post feed with multipart uploads, comments, and the member page.
// Access and refresh tokens are HS256 JWTs. Login and reissue set the
// refresh token as an HttpOnly refresh_token cookie and keep the single
// live copy in a RefreshStore (memory or Redis under refreshToken:<id>).
// Reissue rotates both tokens; presenting a stale refresh token revokes
// the stored one.
//
// POST /_stub/expire-access (or ExpireAccessTokens) invalidates every
// access token handed out so far, which is how tests drive a client
// through the reissue path. Prometheus metrics are served on /metrics.
package stubserver

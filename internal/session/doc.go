// Package session holds the client's authentication identity.
//
// # Storage
//
// A Storage is the durable slot for the access token, the refresh
// credential and the display identity. Three implementations ship:
//
//   - FileStorage: a TOML document written atomically with mode 0600
//   - RedisStorage: <prefix>:access_token, <prefix>:refresh_token and a
//     <prefix>:user hash
//   - MemoryStorage: process-local, for tests and --ephemeral runs
//
// # Store
//
// Store wraps a Storage with an in-memory copy hydrated by Open. Every
// mutation hits storage before it returns. AccessToken always reads
// storage, so a token written by another process is picked up by the
// next request.
//
//	store, err := session.Open(ctx, session.NewMemoryStorage(), logger)
//	_ = store.SetAccessToken(ctx, "T1")
//	store.Read().IsAuthenticated // true
//	_ = store.Logout(ctx)
//	store.Read().IsAuthenticated // false
//
// The refresh credential is opaque here. The authclient cookie jar writes
// it through SetRefreshToken when the backend sets the cookie and reads
// it back for reissue; Logout clears it with everything else.
package session

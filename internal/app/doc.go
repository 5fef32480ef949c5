// Package app is the composition root for morsel.
//
// Build turns a config.Config into the running stack:
//
//	config.Load ──> logging.Open ──> Build
//	                                  ├─> session storage (file | redis | memory)
//	                                  ├─> session.Open (hydrate)
//	                                  ├─> authclient.New (cookie jar, metrics, hook)
//	                                  └─> api.New
//
// Run adds the feed poller and hands everything to the UI. The CLI
// subcommands (Login, Logout, Whoami, Signup) reuse Build and exit.
//
// # Polling
//
// StartPoller fetches the page the state.Store is tracking and records
// the result. After a failure the next poll waits base*2^failures, capped
// at 30 seconds, so an offline backend is not hammered.
//
// # Session Expiry
//
// The authclient failure hook pushes onto Deps.AuthExpired without
// blocking. The UI listens on it and returns to the login view.
package app

// Package ui provides the morsel terminal client built on Bubble Tea.
//
// # Views
//
// The Model switches between a small set of views:
//
//   - Login: login id and password form, shown at start when no session is stored
//   - Feed: the current page of the post feed, refreshed by the background poller
//   - Detail: a single post with its images and comments, plus a comment box
//   - Compose: the new/edit post form (title, content, attachments)
//   - My page: the member's profile and their own posts
//   - Activity: the client's own log file, parsed into entries
//
// # Data Flow
//
//  1. app.Run starts a poller that writes feed pages into state.Store
//  2. A tick copies the latest snapshot into the Model
//  3. Everything else (login, posts, comments, profile) runs as tea.Cmds against API
//  4. Results come back as messages and update the view
//
// # Session Expiry
//
// The transport retries a 401 once after reissuing the access token. When that
// fails it reports an authclient.AuthError, and the Model returns to the login
// view. The same happens when the transport's auth failure hook fires, which
// arrives on Options.AuthExpired.
//
// # Key Bindings
//
//   - j/k: Move selection or scroll
//   - enter: Open selected post / submit form
//   - n: New post
//   - [ / ]: Previous / next feed page
//   - m: My page, a: Activity, r: Refresh
//   - c: Comment, e: Edit, D: Delete (post detail)
//   - T: Cycle theme, h/?: Help, L: Log out
//   - esc: Back, q or ctrl+c: Quit
package ui

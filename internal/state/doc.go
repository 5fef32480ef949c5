// Package state shares the latest feed page between the background poller
// and the UI.
//
// The poller is the single writer:
//
//	feed, err := backend.Feed(ctx, store.Page())
//	store.Update(feed, err)
//
// The UI reads copies with Snapshot on its own tick. A failed poll keeps
// the previous posts and records LastError; two failures in a row mark
// the snapshot offline. Store is ready to use as a zero value.
package state

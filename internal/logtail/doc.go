// Package logtail reads back morsel's own log file for the activity view.
//
// Read returns the last N lines using a ring buffer of N strings, so the
// file is scanned once and memory stays O(N) whatever its size:
//
//	lines, err := logtail.Read(cfg.LogPath(), 400)
//
// Parse decodes one line written by slog's text handler
// (time=... level=INFO msg="logged in" component=api login_id=abc) into an
// Entry with the built-in keys lifted out and the rest kept in order as
// Attrs. ReadEntries combines both and filters by level.
package logtail

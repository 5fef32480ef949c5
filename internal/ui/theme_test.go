package ui

import (
	"log/slog"
	"testing"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Dracula" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Dracula Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Dracula"); got != "Slate" {
		t.Fatalf("NextTheme(Dracula) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("Unknown"); got != "Dracula" {
		t.Fatalf("NextTheme(Unknown) = %q, want Dracula", got)
	}
}

func TestGetTheme(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q, want Slate", got)
	}
	if got := GetTheme("Unknown").Name; got != "Dracula" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Dracula (fallback)", got)
	}
}

func TestLevelStyleFallsBackToMuted(t *testing.T) {
	th := defaultTheme()
	styles := th.Styles()
	if got := styles.LevelStyle(slog.LevelError).GetForeground(); got == nil {
		t.Fatalf("LevelStyle(ERROR) has no foreground")
	}
	if got, want := styles.LevelStyle(slog.Level(42)).Render("x"), styles.LevelStyle(slog.Level(43)).Render("x"); got != want {
		t.Fatalf("unknown levels render differently: %q vs %q", got, want)
	}
}

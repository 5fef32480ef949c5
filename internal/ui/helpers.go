package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodcom/morsel/internal/authclient"
)

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncateMiddle(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	keep := limit - 1 // room for ellipsis rune
	prefix := keep / 2
	suffix := keep - prefix
	return string(runes[:prefix]) + "…" + string(runes[len(runes)-suffix:])
}

func truncateEnd(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

func padRight(value string, width int) string {
	if n := len([]rune(value)); n < width {
		return value + strings.Repeat(" ", width-n)
	}
	return value
}

// describeError turns an API error into one status line.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	var transport *authclient.TransportError
	if errors.As(err, &transport) {
		return "backend unreachable: " + classifyConnectionError(transport.Err)
	}
	switch {
	case authclient.IsForbidden(err):
		return "only the author can change this post"
	case authclient.IsNotFound(err):
		return "not found"
	case authclient.IsConflict(err):
		return "already exists"
	}
	var upstream *authclient.UpstreamError
	if errors.As(err, &upstream) && upstream.Message != "" {
		return upstream.Message
	}
	return err.Error()
}

package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one parsed slog text record.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	Component string
	Attrs     []Attr
	Raw       string
}

// Attr is a key=value pair other than the built-in keys.
type Attr struct {
	Key   string
	Value string
}

// Attr returns the value of key, or "" when absent.
func (e Entry) Attr(key string) string {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Parse decodes a line written by slog's text handler. Lines that are not
// key=value records come back with only Raw and Message set and ok false.
func Parse(line string) (Entry, bool) {
	entry := Entry{Raw: line, Level: slog.LevelInfo}
	pairs, ok := splitPairs(line)
	if !ok || len(pairs) == 0 {
		entry.Message = strings.TrimSpace(line)
		return entry, false
	}
	for _, kv := range pairs {
		switch kv.Key {
		case slog.TimeKey:
			if t, err := time.Parse(time.RFC3339Nano, kv.Value); err == nil {
				entry.Time = t
			}
		case slog.LevelKey:
			_ = entry.Level.UnmarshalText([]byte(kv.Value))
		case slog.MessageKey:
			entry.Message = kv.Value
		case "component":
			entry.Component = kv.Value
		default:
			entry.Attrs = append(entry.Attrs, kv)
		}
	}
	return entry, true
}

// ReadEntries tails path and parses the lines, dropping records below
// minLevel. Unparseable lines are kept so nothing silently disappears.
func ReadEntries(path string, maxLines int, minLevel slog.Level) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, ok := Parse(line)
		if ok && entry.Level < minLevel {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func splitPairs(line string) ([]Attr, bool) {
	var pairs []Attr
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \t\"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest)
			if end < 0 {
				return nil, false
			}
			unquoted, err := strconv.Unquote(rest[:end+1])
			if err != nil {
				return nil, false
			}
			value = unquoted
			rest = rest[end+1:]
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				sp = len(rest)
			}
			value = rest[:sp]
			rest = rest[sp:]
		}
		pairs = append(pairs, Attr{Key: key, Value: value})
		rest = strings.TrimLeft(rest, " ")
	}
	return pairs, true
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

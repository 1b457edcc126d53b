package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, " ")
}

func clean(s string) string {
	return collapseWhitespace(sanitizeUTF8(s))
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// contentHash is the base identity of an item: its resolved day and title.
func contentHash(day time.Time, title string) string {
	sum := sha256.Sum256([]byte(day.Format("2006-01-02") + "-" + title))
	return hex.EncodeToString(sum[:])
}

// locationHash derives the per-location identity; the first kept location keeps the base hash.
func locationHash(base string, idx int, location string) string {
	if idx == 0 {
		return base
	}
	sum := sha256.Sum256([]byte(base + "-" + location))
	return hex.EncodeToString(sum[:])
}

func eventTitle(category, summary, location string, multi bool) string {
	if multi {
		return "[" + category + "] " + truncate(summary, 180) + " (" + location + ")"
	}
	return "[" + category + "] " + truncate(summary, 200)
}

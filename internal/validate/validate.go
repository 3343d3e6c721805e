// Package validate holds the stateless content and id checks shared by every
// model type. All functions are pure; callers decide whether a failed check is
// an error.
package validate

import (
	"regexp"
	"strings"
)

const (
	// MaxContentLength caps free-text content in characters (runes).
	MaxContentLength = 10000
	// MaxIDLength caps entity ids.
	MaxIDLength = 100
)

// uuidRegex matches the canonical 8-4-4-4-12 UUID shape.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// dangerousPatterns is a small blocklist of scheme/markup fragments that must
// never reach stored content. Matched case-insensitively.
var dangerousPatterns = []string{
	"<script",
	"javascript:",
	"data:",
	"vbscript:",
}

// Content reports whether text is acceptable as stored content: non-empty,
// within the length cap, and free of blocklisted patterns.
func Content(text string) bool {
	if text == "" {
		return false
	}
	if len([]rune(text)) > MaxContentLength {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// SanitizeContent trims surrounding whitespace, strips ASCII control
// characters except tab and newline, and truncates to MaxContentLength runes.
func SanitizeContent(text string) string {
	text = strings.TrimSpace(text)

	text = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)

	runes := []rune(text)
	if len(runes) > MaxContentLength {
		text = string(runes[:MaxContentLength])
	}
	return text
}

// ID reports whether id is a canonical UUID within the length cap.
func ID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	return uuidRegex.MatchString(id)
}

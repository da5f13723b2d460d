// SPDX-License-Identifier: MIT

package report

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is Discord's per-message character limit.
const MessageLimit = 2000

// Split breaks a message into chunks of at most max characters, preferring
// line boundaries. Discord's limit counts characters, not bytes, and report
// lines are emoji-heavy, so lengths are measured in runes and a single line
// longer than max is hard-split on rune boundaries.
func Split(message string, max int) []string {
	if max <= 0 {
		max = MessageLimit
	}
	if utf8.RuneCountInString(message) <= max {
		return []string{message}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.Split(message, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen+1 > max {
			flush()
			for lineLen > max {
				head, rest := cutRunes(line, max)
				parts = append(parts, head)
				line = rest
				lineLen -= max
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
		currentLen += lineLen + 1
	}
	flush()

	return parts
}

// cutRunes splits s after n runes.
func cutRunes(s string, n int) (head, tail string) {
	seen := 0
	for pos := range s {
		if seen == n {
			return s[:pos], s[pos:]
		}
		seen++
	}
	return s, ""
}

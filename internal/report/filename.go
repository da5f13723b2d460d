// SPDX-License-Identifier: MIT

package report

import (
	"regexp"
	"strings"
	"unicode"
)

var dashRun = regexp.MustCompile(`-+`)

// Slug converts a thread name into a filesystem-safe, human-readable slug.
// Example: "August Photo Challenge!" → "august-photo-challenge"
func Slug(name string) string {
	if name == "" {
		return "thread"
	}

	s := strings.ToLower(name)

	var result strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			result.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(result.String(), "-")
	slug = dashRun.ReplaceAllString(slug, "-")

	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		return "thread"
	}
	return slug
}

// CSVFilename derives the report filename from a thread name.
func CSVFilename(threadName string) string {
	return Slug(threadName) + "-results.csv"
}

package convert

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 120

// forbidden covers every character rejected by common filesystems.
const forbidden = `<>:"\/|?*`

// SanitizeName maps an arbitrary display name to a filesystem-safe string.
// Every forbidden character is replaced with an underscore and the result
// is truncated to 120 characters. Total and idempotent: no input fails,
// and sanitizing a sanitized name is a no-op.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(forbidden, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return truncateRunes(b.String(), maxNameLength)
}

// truncateRunes cuts after limit characters. Counting runes rather than
// bytes keeps multi-byte names at their full length.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// uniqueName disambiguates sanitized-name collisions within one workbook
// by appending a numeric suffix before the extension: report.pdf,
// report_2.pdf, report_3.pdf. The base is trimmed so the suffixed name
// stays within the length bound. seen maps base names to occurrence
// counts and is updated in place.
func uniqueName(base string, seen map[string]int) string {
	seen[base]++
	n := seen[base]
	if n == 1 {
		return base
	}
	suffix := fmt.Sprintf("_%d", n)
	return truncateRunes(base, maxNameLength-len(suffix)) + suffix
}

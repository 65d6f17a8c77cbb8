package util

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// CleanText NFC-normalizes s and collapses all whitespace to single spaces.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// CleanBlock is CleanText applied per line. Empty lines are dropped.
func CleanBlock(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = CleanText(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// LabeledValue scans text line by line for the first line starting with
// one of labels (exact, case-sensitive) and returns the value after it.
// Lines whose value is empty are skipped.
func LabeledValue(text string, labels ...string) string {
	for _, line := range strings.Split(text, "\n") {
		for _, lab := range labels {
			if !strings.HasPrefix(line, lab) {
				continue
			}
			if v := CleanText(line[len(lab):]); v != "" {
				return v
			}
		}
	}
	return ""
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Truncate flattens s to one line and cuts it to at most limit bytes, backing
// off to a rune boundary.
func Truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := max(limit, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

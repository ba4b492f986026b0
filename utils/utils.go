package utils

import (
	"strconv"
	"strings"
)

// OptionalString returns a pointer to the trimmed string, or nil if it is empty.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SplitList splits a sep-separated list, trimming entries and dropping empty ones.
func SplitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitLines splits a textarea value into one trimmed entry per non-empty line.
func SplitLines(s string) []string {
	return SplitList(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// ParsePositiveInt parses s, returning def when s is empty, malformed or < 1.
func ParsePositiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

package command

import "strings"

// SplitLines splits command output into lines. An empty string has no
// lines and a trailing newline does not start an empty last line.
func SplitLines(s string) []string {
	lines := []string{}
	for s != "" {
		line, rest, _ := strings.Cut(s, "\n")
		lines = append(lines, line)
		s = rest
	}
	return lines
}

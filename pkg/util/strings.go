package util

import (
	"bufio"
	"os"
	"strings"
)

// SplitCommaSeparated splits a comma-separated string and trims whitespace from each element.
// Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// ParseLines returns the trimmed non-empty lines of text, skipping lines
// that start with '#'.
func ParseLines(text string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ReadListFile reads a host or command list file (one entry per line,
// '#' comments). An empty list is an error.
func ReadListFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ListFileError{Path: path, Err: err}
	}
	lines := ParseLines(string(data))
	if len(lines) == 0 {
		return nil, &ListFileError{Path: path, Err: ErrEmptyList}
	}
	return lines, nil
}

// FirstLabel returns the first DNS label of a host name
// ("bby-core-1.example.net" → "bby-core-1").
func FirstLabel(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

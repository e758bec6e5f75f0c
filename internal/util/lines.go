package util

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
)

// ansiPattern matches CSI escape sequences such as colour codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// ScanLinesCR is a bufio.SplitFunc that treats both '\n' and '\r' as line endings.
// Progress meters redraw with a bare carriage return.
func ScanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// EachLine calls fn for every non-empty line read from r until EOF.
func EachLine(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(ScanLinesCR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// RemoveWhitespace drops every whitespace rune from s.
func RemoveWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

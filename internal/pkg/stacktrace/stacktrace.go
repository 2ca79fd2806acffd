// Package stacktrace shortens runtime stack dumps for log lines.
package stacktrace

import "strings"

// InternalPaths returns the file:line locations under an internal/ directory
// found in a raw stack trace produced by runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}

		loc, _, _ := strings.Cut(line, " ")
		internalIdx := strings.Index(loc, "/internal/")
		if internalIdx == -1 {
			continue
		}
		paths = append(paths, loc[internalIdx+1:])
	}
	return paths
}

// Frames returns InternalPaths when any are found and the full trace
// otherwise, so a log line never loses the location of a panic.
func Frames(stack []byte) any {
	if paths := InternalPaths(stack); len(paths) > 0 {
		return paths
	}
	return string(stack)
}

package parsers

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxOrders     = 50
	maxValueLen   = 2 * 1024
	maxErrSnippet = 200
)

// extractObject returns the outermost JSON object in content, dropping code
// fences and any prose the model wrapped around it.
func extractObject(content string) (string, error) {
	if len(content) > maxContentLen {
		return "", fmt.Errorf("content too large: %d bytes", len(content))
	}
	if !utf8.ValidString(content) {
		return "", fmt.Errorf("content is not valid utf8")
	}
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object in %q", safeSnippet(content))
	}
	return s[start : end+1], nil
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

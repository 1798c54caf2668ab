//go:build !windows
// +build !windows

package gitpoller

import "strings"

// cleanLineEndings normalizes CRLF line endings that a Windows git client
// may emit into commit comments, keeping extracted metadata stable across
// the host OS the poller runs on
func cleanLineEndings(log string) string {
	return strings.ReplaceAll(log, "\r\n", "\n")
}

//go:build windows
// +build windows

package gitpoller

// cleanLineEndings is a no-op on Windows: the host git client already
// emits comments in the platform's native line ending
func cleanLineEndings(log string) string {
	return log
}

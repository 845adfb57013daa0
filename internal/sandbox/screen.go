package sandbox

import (
	"fmt"
	"strings"
)

// MaxCodeSize caps submitted code at 1MB.
const MaxCodeSize = 1 << 20

// forbiddenPatterns lists substrings that reject a submission outright.
// The container enforces the real boundary; this is early feedback for the
// obvious escape attempts.
var forbiddenPatterns = []string{
	"subprocess",
	"os.system",
	"eval(",
	"exec(",
	"importlib",
	"sys.modules",
	"__import__",
	"open(",
	"file(",
	"execfile(",
	"compile(",
	"pty",
	"popen",
	"system",
}

// ScreenCode rejects code that is empty, oversized, or contains a forbidden
// module or call.
func ScreenCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty code")
	}
	if len(code) > MaxCodeSize {
		return fmt.Errorf("code too large: %d bytes (max %d)", len(code), MaxCodeSize)
	}
	for _, pattern := range forbiddenPatterns {
		if strings.Contains(code, pattern) {
			return fmt.Errorf("forbidden module or function detected: %s", pattern)
		}
	}
	return nil
}

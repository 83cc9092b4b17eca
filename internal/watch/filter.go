package watch

import (
	"path/filepath"
	"strings"
)

// shouldIgnoreEvent reports editor swap, backup and lock files. None of them
// carries a style-sheet extension, so this only saves the predicate work and
// keeps debug output quiet.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == ".DS_Store" || base == "Thumbs.db":
		return true
	}
	return false
}

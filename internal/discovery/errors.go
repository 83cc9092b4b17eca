package discovery

import "errors"

// Sentinel errors for source discovery. They enable consistent classification of
// discovery outcomes by callers.
var (
	// ErrRootNotFound indicates a configured root directory does not exist.
	ErrRootNotFound = errors.New("root directory not found")

	// ErrDirReadFailed indicates listing a directory below a root failed.
	ErrDirReadFailed = errors.New("directory read failed")

	// ErrOutputCollision indicates two distinct source files map to the same output target.
	ErrOutputCollision = errors.New("output target collision")
)

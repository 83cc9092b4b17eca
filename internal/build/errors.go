package build

import "errors"

var (
	// ErrBuildFailed indicates a batch finished with at least one failed file.
	ErrBuildFailed = errors.New("build finished with failures")
	// ErrBuildInterrupted indicates a batch stopped before every file was compiled.
	ErrBuildInterrupted = errors.New("build interrupted")
)

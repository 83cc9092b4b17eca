// Package errors provides classified error primitives used across cssbuilder.
//
// A ClassifiedError carries a category (config, filesystem, transform, watch, ...),
// a severity, and structured context. The fluent ErrorBuilder keeps construction
// uniform:
//
//	err := errors.FileSystemError("read source failed").
//		WithCause(readErr).
//		WithContext("path", path).
//		Build()
//
// The CLI adapter maps categories onto process exit codes.
package errors

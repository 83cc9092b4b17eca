// Package pipeline composes the fixed, ordered list of text-to-text stages that turns
// an author-written style sheet into the compiled file loaded at runtime.
//
// Stage order is load-bearing:
//
//	import -> nesting -> lower -> prefix -> comments
//
// Prefixing runs after lowering so it sees lowered syntax, and the comment filter runs
// last so comments injected by earlier stages obey the same allow-list.
//
// A Pipeline is immutable after construction and safe for concurrent use.
package pipeline

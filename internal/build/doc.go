// Package build runs one-shot batch builds: discover every source style sheet
// under the configured roots, compile each one sequentially, and report counts.
//
// The watch engine runs a batch once at startup through the same Runner, so both
// modes share discovery, collision handling and summary logging.
package build

package pipeline

import (
	"fmt"
	"strings"
)

// TransformError reports a stage rejecting its input. Line and Column are 1-based
// and zero when the stage could not attribute a position.
type TransformError struct {
	Stage   string
	Message string
	File    string
	Line    int
	Column  int
	Err     error
}

func (e *TransformError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s stage: %s", e.Stage, e.Message)
	if e.File != "" {
		fmt.Fprintf(&b, " (%s", e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(")")
	} else if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}
	return b.String()
}

func (e *TransformError) Unwrap() error { return e.Err }

// position converts a byte offset in text into a 1-based line and column.
func position(text string, offset int) (line, column int) {
	if offset > len(text) {
		offset = len(text)
	}
	prefix := text[:offset]
	line = strings.Count(prefix, "\n") + 1
	column = offset - strings.LastIndexByte(prefix, '\n')
	return line, column
}

package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyRoot       = "root"
	KeyStage      = "stage"
	KeyLine       = "line"
	KeyColumn     = "column"
	KeyCount      = "count"
	KeyRunID      = "run_id"
	KeyOp         = "op"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Path(p string) slog.Attr     { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr   { return slog.String(KeyOutput, p) }
func Root(r string) slog.Attr     { return slog.String(KeyRoot, r) }
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }
func Line(n int) slog.Attr        { return slog.Int(KeyLine, n) }
func Column(n int) slog.Attr      { return slog.Int(KeyColumn, n) }
func Count(n int) slog.Attr       { return slog.Int(KeyCount, n) }
func RunID(id string) slog.Attr   { return slog.String(KeyRunID, id) }
func Op(op string) slog.Attr      { return slog.String(KeyOp, op) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCycleID    = "cycle_id"
	KeyPhase      = "phase"
	KeyPath       = "path"
	KeyProcessor  = "processor"
	KeyNormalizer = "normalizer"
	KeyKind       = "kind"
	KeyCount      = "count"
	KeyFull       = "full"
	KeyDurationMS = "duration_ms"
	KeyArtifact   = "artifact"
	KeyCommand    = "command"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CycleID(id string) slog.Attr      { return slog.String(KeyCycleID, id) }
func Phase(name string) slog.Attr      { return slog.String(KeyPhase, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Processor(name string) slog.Attr  { return slog.String(KeyProcessor, name) }
func Normalizer(name string) slog.Attr { return slog.String(KeyNormalizer, name) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Full(full bool) slog.Attr         { return slog.Bool(KeyFull, full) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Artifact(p string) slog.Attr      { return slog.String(KeyArtifact, p) }
func Command(name string) slog.Attr    { return slog.String(KeyCommand, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

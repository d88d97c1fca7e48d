package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyExample    = "example"
	KeySlug       = "slug"
	KeyLocality   = "locality"
	KeyArtifact   = "artifact"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyReason     = "reason"
	KeyStatus     = "status"
	KeyTool       = "tool"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Example(title string) slog.Attr  { return slog.String(KeyExample, title) }
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func Locality(l string) slog.Attr     { return slog.String(KeyLocality, l) }
func Artifact(kind string) slog.Attr  { return slog.String(KeyArtifact, kind) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Tool(name string) slog.Attr      { return slog.String(KeyTool, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

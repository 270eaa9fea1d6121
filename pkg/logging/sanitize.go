package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// piiPatterns matches values that look like emails, bearer tokens, or
// credit-card-shaped digit runs. Every pattern is applied in turn, and each
// matched substring is replaced with [REDACTED]; the rest of the value is
// kept.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-_.]+`),
	regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`),
}

var sensitiveKeys = map[string]struct{}{
	"password": {}, "secret": {}, "token": {}, "api_key": {}, "apikey": {},
	"authorization": {}, "ssn": {}, "email": {}, "phone": {},
}

const redacted = "[REDACTED]"

// SanitizingHandler wraps an slog.Handler and redacts attribute values
// that look like PII, or whose key names are known-sensitive, before they
// reach the wrapped handler.
type SanitizingHandler struct {
	next slog.Handler
}

// NewSanitizingHandler wraps next with PII redaction.
func NewSanitizingHandler(next slog.Handler) *SanitizingHandler {
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, record slog.Record) error {
	sanitized := slog.NewRecord(record.Time, record.Level, sanitizeString(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.next.Handle(ctx, sanitized)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizedAttrs)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	if _, sensitive := sensitiveKeys[a.Key]; sensitive {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, sanitizeString(a.Value.String()))
	}
	return a
}

func sanitizeString(s string) string {
	for _, pattern := range piiPatterns {
		s = pattern.ReplaceAllString(s, redacted)
	}
	return s
}

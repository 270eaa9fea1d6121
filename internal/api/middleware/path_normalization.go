package middleware

import (
	"regexp"
	"strings"
)

// PathNormalizer collapses dynamic path segments (UUIDs, numeric IDs) into
// a fixed placeholder so they don't blow up the cardinality of the
// "endpoint" label on HTTP metrics.
type PathNormalizer struct {
	uuidPattern      *regexp.Regexp
	numericIDPattern *regexp.Regexp
}

// NewPathNormalizer creates a path normalizer with default patterns.
func NewPathNormalizer() *PathNormalizer {
	return &PathNormalizer{
		uuidPattern:      regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
		numericIDPattern: regexp.MustCompile(`/\d{1,20}(?:/|$)`),
	}
}

// NormalizePath replaces dynamic segments in path with ":id" placeholders.
//
//	"/graphql/notes/123e4567-e89b-12d3-a456-426614174000" -> "/graphql/notes/:id"
//	"/graphql/notes/12345"                                -> "/graphql/notes/:id"
//	"/health"                                              -> "/health" (unchanged)
func (n *PathNormalizer) NormalizePath(path string) string {
	if path == "" || path == "/" {
		return path
	}

	normalized := n.uuidPattern.ReplaceAllString(path, "/:id")
	normalized = n.numericIDPattern.ReplaceAllString(normalized, "/:id/")
	normalized = strings.TrimSuffix(normalized, "/")

	if normalized == "" {
		return "/"
	}
	return normalized
}

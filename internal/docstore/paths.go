package docstore

import (
	"strings"

	"github.com/tphakala/invsync/internal/errors"
)

// PathSeparator separates collection and document segments.
const PathSeparator = "/"

// ErrInvalidPath is returned for paths with empty segments or the wrong depth.
var ErrInvalidPath = errors.NewStd("invalid document store path")

// segments splits p into its non-empty segments. It reports false when p
// contains an empty segment.
func segments(p string) ([]string, bool) {
	if p == "" {
		return nil, false
	}
	parts := strings.Split(p, PathSeparator)
	for _, s := range parts {
		if s == "" {
			return nil, false
		}
	}
	return parts, true
}

// IsCollectionPath reports whether p addresses a collection (odd segment count).
func IsCollectionPath(p string) bool {
	parts, ok := segments(p)
	return ok && len(parts)%2 == 1
}

// IsDocumentPath reports whether p addresses a document (even segment count).
func IsDocumentPath(p string) bool {
	parts, ok := segments(p)
	return ok && len(parts)%2 == 0
}

// Join joins path segments with the separator, skipping empty ones.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, PathSeparator)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, PathSeparator)
}

// Split returns the parent path and the last segment of p.
func Split(p string) (parent, id string) {
	i := strings.LastIndex(p, PathSeparator)
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// childSegment returns the first segment of p below prefix, or "" when p is
// not strictly below prefix.
func childSegment(prefix, p string) string {
	if !strings.HasPrefix(p, prefix+PathSeparator) {
		return ""
	}
	rest := p[len(prefix)+1:]
	if i := strings.Index(rest, PathSeparator); i >= 0 {
		return rest[:i]
	}
	return rest
}

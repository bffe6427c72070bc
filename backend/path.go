package backend

import (
	"path"
	"strings"
)

// NormalizePath cleans a POSIX-style path and forces a leading slash. All
// agent-visible paths are absolute, slash-separated and case-sensitive.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// JoinPath joins a base path with a possibly relative child and normalizes.
func JoinPath(base, child string) string {
	if strings.HasPrefix(child, "/") {
		return NormalizePath(child)
	}
	return NormalizePath(path.Join(base, child))
}

// isBeneath reports whether p equals base or sits below it.
func isBeneath(p, base string) bool {
	base = NormalizePath(base)
	p = NormalizePath(p)
	if base == "/" {
		return true
	}
	return p == base || strings.HasPrefix(p, base+"/")
}

// childSegment returns the first path segment of p below base and whether
// further segments follow. p must be beneath base.
func childSegment(p, base string) (name string, hasMore bool) {
	base = NormalizePath(base)
	rel := strings.TrimPrefix(NormalizePath(p), base)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "", false
	}
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i], true
	}
	return rel, false
}

package backend

import (
	"fmt"
	"regexp"
	"strings"
)

// compileGlob translates a glob pattern into an anchored regexp.
// Supported syntax: `*` (within a segment), `?` (single rune within a
// segment), `**` (across segments), `**/` (zero or more leading segments).
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				// "**/" spans zero or more whole segments; bare "**"
				// matches anything including separators.
				if i+2 < len(runes) && runes[i+2] == '/' {
					b.WriteString(`(?:[^/]*/)*`)
					i += 2
				} else {
					b.WriteString(`.*`)
					i++
				}
			} else {
				b.WriteString(`[^/]*`)
			}
		case '?':
			b.WriteString(`[^/]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("backend: bad glob pattern %q: %w", pattern, err)
	}
	return re, nil
}

// globMatcher returns a predicate matching absolute paths against pattern
// resolved beneath basePath. A relative pattern is anchored at basePath.
func globMatcher(pattern, basePath string) (func(string) bool, error) {
	full := pattern
	if !strings.HasPrefix(pattern, "/") {
		base := NormalizePath(basePath)
		if base == "/" {
			full = "/" + pattern
		} else {
			full = base + "/" + pattern
		}
	}
	re, err := compileGlob(full)
	if err != nil {
		return nil, err
	}
	return func(p string) bool { return re.MatchString(NormalizePath(p)) }, nil
}

// includeMatcher builds the optional grep include filter. A pattern without
// a separator matches the file's base name; one with a separator matches the
// full path.
func includeMatcher(include string) (func(string) bool, error) {
	if include == "" {
		return func(string) bool { return true }, nil
	}
	if strings.ContainsRune(include, '/') {
		re, err := compileGlob(NormalizePath(include))
		if err != nil {
			return nil, err
		}
		return func(p string) bool { return re.MatchString(NormalizePath(p)) }, nil
	}
	re, err := compileGlob(include)
	if err != nil {
		return nil, err
	}
	return func(p string) bool {
		p = NormalizePath(p)
		base := p[strings.LastIndexByte(p, '/')+1:]
		return re.MatchString(base)
	}, nil
}

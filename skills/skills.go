// Package skills discovers and layers skill manifests. Each skill lives at
// <source>/<name>/SKILL.md with a YAML frontmatter block; sources are
// scanned in configured order and later sources win name collisions, so a
// project layer can override a user layer which overrides a base layer.
//
// Only the name, description and allowed tools are exposed upfront; full
// instructions stay on storage and are read on demand through the tool
// suite.
package skills

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ManifestName is the per-skill manifest filename.
	ManifestName = "SKILL.md"

	// maxManifestSize rejects oversized manifests before parsing.
	maxManifestSize = 10 << 20

	maxNameLen        = 64
	maxDescriptionLen = 1024
)

// nameRe is the compliant skill-name shape: lowercase alphanumerics with
// single hyphens.
var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Metadata is one registered skill.
type Metadata struct {
	Name          string
	Description   string
	Path          string // manifest path on the backend
	License       string
	Compatibility string
	AllowedTools  []string
	Extra         map[string]string
}

// frontmatter is the YAML block at the top of a SKILL.md.
type frontmatter struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	License       string            `yaml:"license"`
	Compatibility string            `yaml:"compatibility"`
	AllowedTools  string            `yaml:"allowed-tools"`
	Metadata      map[string]string `yaml:"metadata"`
}

// extractFrontmatter pulls the YAML block delimited by leading and trailing
// "---" lines. A manifest without one returns nil yaml and no error; the
// caller treats that as a skippable condition.
func extractFrontmatter(data []byte) ([]byte, error) {
	s := string(data)
	if s == "" {
		return nil, nil
	}

	firstLineEnd := strings.IndexByte(s, '\n')
	firstLine := s
	rest := ""
	if firstLineEnd >= 0 {
		firstLine = s[:firstLineEnd]
		rest = s[firstLineEnd+1:]
	}
	if strings.TrimSpace(strings.TrimSuffix(firstLine, "\r")) != "---" {
		return nil, nil
	}

	for off := 0; off < len(rest); {
		lineEnd := strings.IndexByte(rest[off:], '\n')
		line := rest[off:]
		next := len(rest)
		if lineEnd >= 0 {
			line = rest[off : off+lineEnd]
			next = off + lineEnd + 1
		}
		if strings.TrimSpace(strings.TrimSuffix(line, "\r")) == "---" {
			return []byte(rest[:off]), nil
		}
		off = next
	}
	return nil, fmt.Errorf("skills: frontmatter not terminated")
}

// parseManifest parses one SKILL.md into Metadata. A missing or unparsable
// frontmatter block, or a missing required field, is an error the loader
// logs and skips.
func parseManifest(data []byte, path string) (Metadata, error) {
	yamlBytes, err := extractFrontmatter(data)
	if err != nil {
		return Metadata{}, err
	}
	if len(yamlBytes) == 0 {
		return Metadata{}, fmt.Errorf("skills: no frontmatter block")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(yamlBytes, &fm); err != nil {
		return Metadata{}, fmt.Errorf("skills: parse frontmatter: %w", err)
	}

	name := strings.TrimSpace(fm.Name)
	description := strings.TrimSpace(fm.Description)
	if name == "" {
		return Metadata{}, fmt.Errorf("skills: missing name")
	}
	if description == "" {
		return Metadata{}, fmt.Errorf("skills: missing description")
	}

	return Metadata{
		Name:          name,
		Description:   description,
		Path:          path,
		License:       strings.TrimSpace(fm.License),
		Compatibility: strings.TrimSpace(fm.Compatibility),
		AllowedTools:  strings.Fields(fm.AllowedTools),
		Extra:         fm.Metadata,
	}, nil
}

// nameIssues returns the compliance problems with a skill name relative to
// its containing directory. Violations are advisory: the loader logs them
// and registers the skill anyway for backward compatibility.
func nameIssues(name, dirName string) []string {
	var issues []string
	if len(name) > maxNameLen {
		issues = append(issues, fmt.Sprintf("name exceeds %d chars", maxNameLen))
	}
	if !nameRe.MatchString(name) {
		issues = append(issues, "name is not lowercase-alphanumeric-with-hyphens")
	}
	if name != dirName {
		issues = append(issues, fmt.Sprintf("name %q differs from directory %q", name, dirName))
	}
	return issues
}

// Summary renders the agent-visible skill listing: name, description and
// allowed tools only.
func Summary(skills []Metadata) string {
	if len(skills) == 0 {
		return "No skills available."
	}
	sorted := append([]Metadata(nil), skills...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	for _, s := range sorted {
		fmt.Fprintf(&sb, "- %s: %s", s.Name, s.Description)
		if len(s.AllowedTools) > 0 {
			fmt.Fprintf(&sb, " (allowed tools: %s)", strings.Join(s.AllowedTools, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

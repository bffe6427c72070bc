package skills

import (
	"strings"
	"testing"
)

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantNil bool
		wantErr bool
	}{
		{
			name: "canonical block",
			in:   "---\nname: x\ndescription: y\n---\nbody",
			want: "name: x\ndescription: y\n",
		},
		{
			name:    "no frontmatter",
			in:      "# just markdown\n",
			wantNil: true,
		},
		{
			name:    "empty input",
			in:      "",
			wantNil: true,
		},
		{
			name:    "unterminated block",
			in:      "---\nname: x\n",
			wantErr: true,
		},
		{
			name: "crlf delimiters",
			in:   "---\r\nname: x\r\n---\r\nbody",
			want: "name: x\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractFrontmatter([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractFrontmatter: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %q", got)
				}
				return
			}
			if string(got) != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseManifest(t *testing.T) {
	data := []byte(`---
name: web-research
description: Research topics on the web.
license: MIT
compatibility: ">=1.0"
allowed-tools: read grep glob
metadata:
  author: someone
---
# Web research

Full instructions live here.
`)
	meta, err := parseManifest(data, "/skills/base/web-research/SKILL.md")
	if err != nil {
		t.Fatalf("parseManifest: %v", err)
	}
	if meta.Name != "web-research" {
		t.Errorf("Name = %q", meta.Name)
	}
	if meta.Description != "Research topics on the web." {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.License != "MIT" || meta.Compatibility != ">=1.0" {
		t.Errorf("optional fields = %q / %q", meta.License, meta.Compatibility)
	}
	if got := strings.Join(meta.AllowedTools, ","); got != "read,grep,glob" {
		t.Errorf("AllowedTools = %q", got)
	}
	if meta.Extra["author"] != "someone" {
		t.Errorf("Extra = %v", meta.Extra)
	}
	if meta.Path != "/skills/base/web-research/SKILL.md" {
		t.Errorf("Path = %q", meta.Path)
	}
}

func TestParseManifestRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing name", "---\ndescription: y\n---\n"},
		{"missing description", "---\nname: x\n---\n"},
		{"no frontmatter", "plain markdown"},
		{"invalid yaml", "---\nname: [unclosed\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseManifest([]byte(tt.in), "/p"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNameIssues(t *testing.T) {
	if issues := nameIssues("web-research", "web-research"); len(issues) != 0 {
		t.Errorf("compliant name flagged: %v", issues)
	}
	if issues := nameIssues("Web_Research", "web-research"); len(issues) == 0 {
		t.Errorf("non-compliant name not flagged")
	}
	if issues := nameIssues(strings.Repeat("a", 65), strings.Repeat("a", 65)); len(issues) == 0 {
		t.Errorf("overlong name not flagged")
	}
	if issues := nameIssues("tool", "other-dir"); len(issues) == 0 {
		t.Errorf("dir mismatch not flagged")
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(nil); got != "No skills available." {
		t.Errorf("empty summary = %q", got)
	}

	got := Summary([]Metadata{
		{Name: "zeta", Description: "last"},
		{Name: "alpha", Description: "first", AllowedTools: []string{"read", "grep"}},
	})
	want := "- alpha: first (allowed tools: read, grep)\n- zeta: last"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

// Package template renders {{ .Name }} placeholders in catalog text before it
// is parsed, so directive values can follow the configured install paths.
package template

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// Render executes the Go template string s with params as the data object.
// A placeholder without a matching param is an error.
func Render(s string, params map[string]any) (string, error) {
	t, err := template.New("catalog").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Paths are the install locations a catalog may refer to.
type Paths struct {
	Home         string
	FrameworkDir string
	CustomDir    string
	FontDir      string
}

// Params returns the template data for p. Every path is also offered in
// rc-file form (HomeRel suffix), with the home directory spelled $HOME so
// the rc file stays portable across accounts.
func Params(p Paths) map[string]any {
	return map[string]any{
		"Home":                p.Home,
		"FrameworkDir":        p.FrameworkDir,
		"FrameworkDirHomeRel": homeRel(p.Home, p.FrameworkDir),
		"CustomDir":           p.CustomDir,
		"CustomDirHomeRel":    homeRel(p.Home, p.CustomDir),
		"FontDir":             p.FontDir,
	}
}

func homeRel(home, path string) string {
	if home == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return path
	}
	if rel == "." {
		return "$HOME"
	}
	return "$HOME/" + filepath.ToSlash(rel)
}

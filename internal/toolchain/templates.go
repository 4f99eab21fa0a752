package toolchain

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/p-blackswan/devterm/internal/manifest"
)

//go:embed templates
var templateFS embed.FS

type templateData struct {
	Name    string
	Module  string
	Package string
}

// writeTemplate renders the scaffold files for kind/tmpl into dir and
// returns the relative paths written. Kinds without an overlay for tmpl
// write nothing.
func writeTemplate(kind manifest.Kind, tmpl Template, dir string, data templateData) ([]string, error) {
	root := path.Join("templates", string(kind), string(tmpl))
	var written []string

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		raw, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		t, err := template.New(path.Base(p)).Parse(string(raw))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", p, err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("render template %s: %w", p, err)
		}

		rel := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), ".tmpl")
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) && len(written) == 0 {
		return nil, nil
	}
	return written, err
}

// packageName derives a Go package identifier from a project name.
func packageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(path.Base(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return "lib"
	}
	if unicode.IsDigit(rune(s[0])) {
		return "p" + s
	}
	return s
}

// Package manifest detects and decodes project manifests (go.mod,
// Cargo.toml and pyproject.toml or requirements.txt) into a
// toolchain-neutral shape.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// Kind identifies the toolchain a manifest belongs to.
type Kind string

const (
	KindGo     Kind = "go"
	KindCargo  Kind = "cargo"
	KindPython Kind = "python"
)

// requirementsFile marks a python project that has no pyproject.toml.
const requirementsFile = "requirements.txt"

// Filename returns the manifest file name for the kind.
func (k Kind) Filename() string {
	switch k {
	case KindGo:
		return "go.mod"
	case KindCargo:
		return "Cargo.toml"
	case KindPython:
		return "pyproject.toml"
	default:
		return ""
	}
}

// ParseKind converts a config or flag value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGo, KindCargo, KindPython:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown toolchain kind %q", perrors.ErrInvalidInput, s)
	}
}

// detectOrder is the lookup order when a directory holds more than one manifest.
var detectOrder = []Kind{KindGo, KindCargo, KindPython}

// candidates are the files that identify a project of kind k, preferred first.
func (k Kind) candidates() []string {
	if k == KindPython {
		return []string{k.Filename(), requirementsFile}
	}
	return []string{k.Filename()}
}

// Requirement is one declared dependency.
type Requirement struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Source   string `json:"source,omitempty"` // cargo path or git source
	Indirect bool   `json:"indirect,omitempty"`
}

// Manifest is the decoded package manifest of a project.
type Manifest struct {
	Kind         Kind          `json:"kind"`
	Path         string        `json:"path"`
	Name         string        `json:"name"`
	Version      string        `json:"version,omitempty"`
	Edition      string        `json:"edition,omitempty"`
	Dependencies []Requirement `json:"dependencies,omitempty"`
}

// Detect returns the kind and path of the manifest in dir.
func Detect(dir string) (Kind, string, error) {
	for _, k := range detectOrder {
		for _, name := range k.candidates() {
			p := filepath.Join(dir, name)
			fi, err := os.Stat(p)
			if err == nil && fi.Mode().IsRegular() {
				return k, p, nil
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return "", "", fmt.Errorf("stat %s: %w", p, err)
			}
		}
	}
	return "", "", fmt.Errorf("%w in %s", perrors.ErrManifestMissing, dir)
}

// Load detects and decodes the manifest in dir. A missing manifest returns
// an error wrapping ErrManifestMissing; an undecodable one returns
// *perrors.ManifestParseError.
func Load(dir string) (*Manifest, error) {
	kind, path, err := Detect(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m *Manifest
	switch kind {
	case KindGo:
		m, err = parseGoMod(path, data)
	case KindCargo:
		m, err = parseCargo(data)
	case KindPython:
		if filepath.Base(path) == requirementsFile {
			m, err = parseRequirements(filepath.Base(dir), data)
		} else {
			m, err = parsePyproject(data)
		}
	}
	if err != nil {
		return nil, &perrors.ManifestParseError{Path: path, Err: err}
	}
	m.Kind = kind
	m.Path = path
	return m, nil
}

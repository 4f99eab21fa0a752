package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

const sampleGoMod = `module example.com/hello

go 1.22

require (
	github.com/rs/zerolog v1.32.0
	golang.org/x/sys v0.12.0 // indirect
)
`

const sampleCargo = `[package]
name = "hello"
version = "0.1.0"
edition = "2021"

[dependencies]
serde = "1.0"
local = { path = "../local" }
tokio = { version = "1", features = ["full"] }
remote = { git = "https://example.com/remote.git" }

[dev-dependencies]
version = "not-a-package-field"
`

const samplePyproject = `[build-system]
requires = ["setuptools>=61"]

[project]
name = "hello"
version = "0.3.0"
dependencies = [
    "requests>=2.31",
    "rich[jupyter]>=13; python_version > '3.8'",
    "click",
    "mylib @ https://example.com/mylib.tar.gz",
]

[tool.black]
version = "not-a-project-field"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Detect(dir)
	assert.ErrorIs(t, err, perrors.ErrManifestMissing)

	writeFile(t, dir, "Cargo.toml", sampleCargo)
	kind, path, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, KindCargo, kind)
	assert.Equal(t, filepath.Join(dir, "Cargo.toml"), path)

	writeFile(t, dir, "go.mod", sampleGoMod)
	kind, _, err = Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, KindGo, kind)
}

func TestLoad_GoMod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", sampleGoMod)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, KindGo, m.Kind)
	assert.Equal(t, "example.com/hello", m.Name)
	assert.Empty(t, m.Version)
	assert.Equal(t, "1.22", m.Edition)
	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, Requirement{Name: "github.com/rs/zerolog", Version: "v1.32.0"}, m.Dependencies[0])
	assert.True(t, m.Dependencies[1].Indirect)
}

func TestLoad_Cargo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", sampleCargo)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, KindCargo, m.Kind)
	assert.Equal(t, "hello", m.Name)
	assert.Equal(t, "0.1.0", m.Version)
	assert.Equal(t, "2021", m.Edition)
	assert.Equal(t, []Requirement{
		{Name: "local", Source: "path:../local"},
		{Name: "remote", Source: "git:https://example.com/remote.git"},
		{Name: "serde", Version: "1.0"},
		{Name: "tokio", Version: "1"},
	}, m.Dependencies)
}

func TestLoad_Pyproject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", samplePyproject)
	writeFile(t, dir, "requirements.txt", "ignored==1.0\n")

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, KindPython, m.Kind)
	assert.Equal(t, filepath.Join(dir, "pyproject.toml"), m.Path)
	assert.Equal(t, "hello", m.Name)
	assert.Equal(t, "0.3.0", m.Version)
	assert.Equal(t, []Requirement{
		{Name: "requests", Version: ">=2.31"},
		{Name: "rich", Version: ">=13"},
		{Name: "click"},
		{Name: "mylib", Source: "url:https://example.com/mylib.tar.gz"},
	}, m.Dependencies)
}

func TestLoad_Requirements(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, dir, "requirements.txt", "# tools\n-r base.txt\nflask==3.0.0  # web\n\nnumpy\n")

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, KindPython, m.Kind)
	assert.Equal(t, "scripts", m.Name)
	assert.Empty(t, m.Version)
	assert.Equal(t, []Requirement{{Name: "flask", Version: "==3.0.0"}, {Name: "numpy"}}, m.Dependencies)
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"go syntax", "go.mod", "module\n\nrequire (\n"},
		{"go no module", "go.mod", "go 1.22\n"},
		{"cargo syntax", "Cargo.toml", "[package\nname = \"x\"\n"},
		{"cargo no name", "Cargo.toml", "[package]\nversion = \"0.1.0\"\n"},
		{"cargo workspace only", "Cargo.toml", "[workspace]\nmembers = [\"a\"]\n"},
		{"pyproject no project", "pyproject.toml", "[tool.ruff]\nline-length = 100\n"},
		{"requirement without name", "requirements.txt", ">=1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, tt.file, tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, perrors.ErrManifestParse)
			var pe *perrors.ManifestParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, path, pe.Path)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, perrors.ErrManifestMissing)
}

func TestBumpVersion(t *testing.T) {
	tests := []struct {
		part Part
		want string
	}{
		{PartPatch, "0.1.1"},
		{PartMinor, "0.2.0"},
		{PartMajor, "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.part), func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "Cargo.toml", sampleCargo)

			got, err := BumpVersion(dir, tt.part)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			m, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Version)

			// Only the package version line changes.
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), `version = "not-a-package-field"`)
			assert.Len(t, data, len(sampleCargo)+len(tt.want)-len("0.1.0"))
		})
	}
}

func TestBumpVersion_Pyproject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", samplePyproject)

	got, err := BumpVersion(dir, PartMinor)
	require.NoError(t, err)
	assert.Equal(t, "0.4.0", got)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.4.0", m.Version)
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `version = "not-a-project-field"`)
}

func TestBumpVersion_Errors(t *testing.T) {
	t.Run("go manifest", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "go.mod", sampleGoMod)
		_, err := BumpVersion(dir, PartPatch)
		assert.ErrorIs(t, err, perrors.ErrUnsupported)
	})
	t.Run("requirements only", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "requirements.txt", "flask\n")
		_, err := BumpVersion(dir, PartPatch)
		assert.ErrorIs(t, err, perrors.ErrUnsupported)
	})
	t.Run("bad part", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "Cargo.toml", sampleCargo)
		_, err := BumpVersion(dir, Part("build"))
		assert.ErrorIs(t, err, perrors.ErrInvalidInput)
	})
	t.Run("non semantic", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "Cargo.toml", "[package]\nname = \"x\"\nversion = \"banana\"\n")
		_, err := BumpVersion(dir, PartPatch)
		assert.ErrorIs(t, err, perrors.ErrManifestParse)
	})
	t.Run("no version", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "Cargo.toml", "[package]\nname = \"x\"\n")
		_, err := BumpVersion(dir, PartPatch)
		assert.ErrorIs(t, err, perrors.ErrManifestParse)
	})
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("cargo")
	require.NoError(t, err)
	assert.Equal(t, KindCargo, k)
	assert.Equal(t, "go.mod", KindGo.Filename())
	k, err = ParseKind("python")
	require.NoError(t, err)
	assert.Equal(t, "pyproject.toml", k.Filename())

	_, err = ParseKind("maven")
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

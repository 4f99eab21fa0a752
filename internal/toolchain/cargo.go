package toolchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
)

// Cargo drives the cargo command.
type Cargo struct {
	bin string
}

// NewCargo returns the Cargo toolchain. An empty bin means "cargo" on PATH.
func NewCargo(bin string) *Cargo {
	if bin == "" {
		bin = "cargo"
	}
	return &Cargo{bin: bin}
}

func (c *Cargo) Kind() manifest.Kind { return manifest.KindCargo }
func (c *Cargo) Binary() string      { return c.bin }
func (c *Cargo) Env() []string       { return []string{"RUST_BACKTRACE=1"} }
func (c *Cargo) PrecreatesDir() bool { return false }

func (c *Cargo) NewProjectArgs(workspace, name, _ string, tmpl Template) ([]string, string, string) {
	args := []string{"new", name}
	if tmpl == TemplateLibrary {
		args = append(args, "--lib")
	}
	args = append(args, "--vcs", "none")
	return args, workspace, filepath.Join(workspace, name)
}

func (c *Cargo) BuildArgs(opts BuildOptions) ([]string, error) {
	if opts.Output != "" || opts.LDFlags != "" || opts.Package != "" {
		return nil, fmt.Errorf("%w: cargo build takes no output, package or linker flags", perrors.ErrUnsupported)
	}
	args := []string{"build"}
	if opts.Release {
		args = append(args, "--release")
	}
	return args, nil
}

func (c *Cargo) TestArgs() []string  { return []string{"test"} }
func (c *Cargo) CleanArgs() []string { return []string{"clean"} }
func (c *Cargo) CheckArgs() []string { return []string{"check"} }

func (c *Cargo) RunArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"run"}
	}
	return append([]string{"run", "--"}, args...)
}

func (c *Cargo) DependencyArgs() []string {
	return []string{"metadata", "--format-version", "1"}
}

func (c *Cargo) AddDependencyArgs(name, version string) []string {
	if version != "" {
		name += "@" + version
	}
	return []string{"add", name}
}

func (c *Cargo) InstallArgs(string) []string { return []string{"fetch"} }

type cargoMetadata struct {
	Packages *[]struct {
		Name    string  `json:"name"`
		Version string  `json:"version"`
		Source  *string `json:"source"`
	} `json:"packages"`
}

// ParseDependencies decodes `cargo metadata` output. Packages without a
// registry or git source are local path packages.
func (c *Cargo) ParseDependencies(stdout []byte) ([]Dependency, error) {
	var md cargoMetadata
	if err := json.Unmarshal(stdout, &md); err != nil {
		return nil, err
	}
	if md.Packages == nil {
		return nil, errors.New("missing packages field")
	}
	deps := make([]Dependency, 0, len(*md.Packages))
	for _, p := range *md.Packages {
		d := Dependency{Name: p.Name, Version: p.Version, Source: "path"}
		if p.Source != nil {
			d.Source = *p.Source
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func (c *Cargo) Artifacts(root, name string) []Artifact {
	return []Artifact{
		{Profile: "debug", Path: filepath.Join(root, "target", "debug", name+exeSuffix())},
		{Profile: "release", Path: filepath.Join(root, "target", "release", name+exeSuffix())},
	}
}

package toolchain

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path"
	"path/filepath"
	"runtime"

	"github.com/p-blackswan/devterm/internal/manifest"
)

// Go drives the go command.
type Go struct {
	bin string
}

// NewGo returns the Go toolchain. An empty bin means "go" on PATH.
func NewGo(bin string) *Go {
	if bin == "" {
		bin = "go"
	}
	return &Go{bin: bin}
}

func (g *Go) Kind() manifest.Kind { return manifest.KindGo }
func (g *Go) Binary() string      { return g.bin }
func (g *Go) Env() []string       { return nil }
func (g *Go) PrecreatesDir() bool { return true }

func (g *Go) NewProjectArgs(workspace, name, module string, _ Template) ([]string, string, string) {
	if module == "" {
		module = name
	}
	dir := filepath.Join(workspace, name)
	return []string{"mod", "init", module}, dir, dir
}

func (g *Go) BuildArgs(opts BuildOptions) ([]string, error) {
	args := []string{"build"}
	if opts.Release {
		args = append(args, "-trimpath")
	}
	if opts.LDFlags != "" {
		args = append(args, "-ldflags", opts.LDFlags)
	}
	pkg := opts.Package
	if opts.Output != "" {
		args = append(args, "-o", opts.Output)
		if pkg == "" {
			pkg = "."
		}
	}
	if pkg == "" {
		pkg = "./..."
	}
	return append(args, pkg), nil
}

func (g *Go) TestArgs() []string  { return []string{"test", "./..."} }
func (g *Go) CleanArgs() []string { return []string{"clean"} }
func (g *Go) CheckArgs() []string { return []string{"vet", "./..."} }

func (g *Go) RunArgs(args []string) []string {
	return append([]string{"run", "."}, args...)
}

func (g *Go) DependencyArgs() []string {
	return []string{"list", "-m", "-json", "all"}
}

func (g *Go) AddDependencyArgs(name, version string) []string {
	if version != "" {
		name += "@" + version
	}
	return []string{"get", name}
}

func (g *Go) InstallArgs(string) []string { return []string{"mod", "download"} }

type goModule struct {
	Path     string
	Version  string
	Main     bool
	Indirect bool
	Replace  *goModule
}

// ParseDependencies decodes the concatenated JSON objects printed by
// `go list -m -json all`.
func (g *Go) ParseDependencies(stdout []byte) ([]Dependency, error) {
	dec := json.NewDecoder(bytes.NewReader(stdout))
	var deps []Dependency
	for {
		var m goModule
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if m.Path == "" {
			return nil, errors.New("module entry without path")
		}
		d := Dependency{Name: m.Path, Version: m.Version, Source: "module"}
		switch {
		case m.Main:
			d.Source = "main"
		case m.Replace != nil:
			d.Source = "replace " + m.Replace.Path
			if m.Replace.Version != "" {
				d.Source += "@" + m.Replace.Version
			}
		}
		deps = append(deps, d)
	}
	if len(deps) == 0 {
		return nil, errors.New("no modules listed")
	}
	return deps, nil
}

func (g *Go) Artifacts(root, name string) []Artifact {
	return []Artifact{{Profile: "default", Path: filepath.Join(root, path.Base(name)+exeSuffix())}}
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

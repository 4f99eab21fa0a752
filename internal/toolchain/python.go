package toolchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
)

// venvDirs are the virtual environment locations looked for in a project,
// preferred first. NewProject creates the first.
var venvDirs = []string{".venv", "venv"}

// compileExclude keeps compileall out of virtual environments.
const compileExclude = `[/\\]\.?venv[/\\]`

// Python drives a python interpreter and its pip module.
type Python struct {
	bin string
}

// NewPython returns the Python toolchain. An empty bin means "python3" on PATH.
func NewPython(bin string) *Python {
	if bin == "" {
		bin = "python3"
	}
	return &Python{bin: bin}
}

func (py *Python) Kind() manifest.Kind { return manifest.KindPython }
func (py *Python) Binary() string      { return py.bin }
func (py *Python) PrecreatesDir() bool { return true }

func (py *Python) Env() []string {
	return []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}
}

// BinaryFor returns the interpreter of the virtual environment under dir,
// or the configured interpreter when there is none.
func (py *Python) BinaryFor(dir string) string {
	for _, venv := range venvDirs {
		p := venvPython(filepath.Join(dir, venv))
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return py.bin
}

func venvPython(venv string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts", "python.exe")
	}
	return filepath.Join(venv, "bin", "python")
}

func (py *Python) NewProjectArgs(workspace, name, _ string, _ Template) ([]string, string, string) {
	dir := filepath.Join(workspace, name)
	return []string{"-m", "venv", venvDirs[0]}, dir, dir
}

// BuildArgs byte-compiles the sources; Release compiles optimised bytecode.
func (py *Python) BuildArgs(opts BuildOptions) ([]string, error) {
	if opts.Output != "" || opts.LDFlags != "" || opts.Package != "" {
		return nil, fmt.Errorf("%w: python build takes no output, package or linker flags", perrors.ErrUnsupported)
	}
	var args []string
	if opts.Release {
		args = append(args, "-O")
	}
	return append(args, "-m", "compileall", "-q", "-x", compileExclude, "."), nil
}

func (py *Python) TestArgs() []string  { return []string{"-m", "unittest", "discover", "-v"} }
func (py *Python) CheckArgs() []string { return []string{"-m", "pip", "check"} }

// CleanArgs removes bytecode caches outside virtual environments.
func (py *Python) CleanArgs() []string {
	return []string{"-c", "import pathlib, shutil\n" +
		"for p in pathlib.Path('.').rglob('__pycache__'):\n" +
		"    if not {'.venv', 'venv'} & set(p.parts):\n" +
		"        shutil.rmtree(p)\n"}
}

// RunArgs runs the script named by the first argument, or main.py.
func (py *Python) RunArgs(args []string) []string {
	if len(args) > 0 && strings.HasSuffix(args[0], ".py") {
		return append([]string(nil), args...)
	}
	return append([]string{"main.py"}, args...)
}

func (py *Python) DependencyArgs() []string {
	return []string{"-m", "pip", "list", "--format", "json"}
}

// AddDependencyArgs installs name into the environment. A bare version pins
// it exactly; one that starts with a comparison is used as written.
func (py *Python) AddDependencyArgs(name, version string) []string {
	if version != "" {
		if strings.ContainsAny(version[:1], "<>=!~") {
			name += version
		} else {
			name += "==" + version
		}
	}
	return []string{"-m", "pip", "install", name}
}

// InstallArgs installs requirements.txt when present, otherwise the project
// itself in editable mode.
func (py *Python) InstallArgs(root string) []string {
	if _, err := os.Stat(filepath.Join(root, "requirements.txt")); err == nil {
		return []string{"-m", "pip", "install", "-r", "requirements.txt"}
	}
	return []string{"-m", "pip", "install", "-e", "."}
}

type pipPackage struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Editable string `json:"editable_project_location"`
}

// ParseDependencies decodes `pip list --format json` output.
func (py *Python) ParseDependencies(stdout []byte) ([]Dependency, error) {
	var pkgs []pipPackage
	if err := json.Unmarshal(stdout, &pkgs); err != nil {
		return nil, err
	}
	if pkgs == nil {
		return nil, errors.New("expected a package list")
	}
	deps := make([]Dependency, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Name == "" {
			return nil, errors.New("package entry without name")
		}
		d := Dependency{Name: p.Name, Version: p.Version, Source: "pypi"}
		if p.Editable != "" {
			d.Source = "path:" + p.Editable
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// Artifacts reports the project's virtual environment interpreter.
func (py *Python) Artifacts(root, _ string) []Artifact {
	return []Artifact{{Profile: "venv", Path: venvPython(filepath.Join(root, venvDirs[0]))}}
}

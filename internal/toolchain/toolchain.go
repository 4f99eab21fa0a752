// Package toolchain maps build intents onto the canonical command lines of
// an external package-and-build tool and interprets their results.
package toolchain

import (
	"fmt"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
)

// Intent names one toolchain operation.
type Intent string

const (
	IntentNewProject     Intent = "new_project"
	IntentBuild          Intent = "build"
	IntentTest           Intent = "test"
	IntentRun            Intent = "run"
	IntentClean          Intent = "clean"
	IntentDependencyInfo Intent = "dependency_info"
	IntentCheck          Intent = "check"
	IntentAddDependency  Intent = "add_dependency"
	IntentInstall        Intent = "install_dependencies"
)

// Template selects the scaffold written by NewProject.
type Template string

const (
	TemplateBasic   Template = "basic"
	TemplateLibrary Template = "library"
	TemplateCLI     Template = "cli"
)

// ParseTemplate validates a template name. Empty means basic.
func ParseTemplate(s string) (Template, error) {
	switch Template(s) {
	case "":
		return TemplateBasic, nil
	case TemplateBasic, TemplateLibrary, TemplateCLI:
		return Template(s), nil
	default:
		return "", fmt.Errorf("%w: unknown template %q", perrors.ErrInvalidInput, s)
	}
}

// BuildOptions tunes the build intent.
type BuildOptions struct {
	Release bool
	Output  string // artifact path; go only
	Package string // package to build; go only, defaults to ./... (or . with Output)
	LDFlags string // go only
}

// Dependency is one resolved dependency reported by dependency_info.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source"`
}

// Artifact is an expected build output.
type Artifact struct {
	Profile string
	Path    string
}

// Toolchain knows the argument vocabulary of one external tool.
type Toolchain interface {
	Kind() manifest.Kind
	Binary() string
	Env() []string

	// NewProjectArgs returns the scaffold command and the directory it runs in.
	// dir is the created project root; the command runs in workDir.
	NewProjectArgs(workspace, name, module string, tmpl Template) (args []string, workDir, dir string)
	BuildArgs(opts BuildOptions) ([]string, error)
	TestArgs() []string
	RunArgs(args []string) []string
	CleanArgs() []string
	CheckArgs() []string
	DependencyArgs() []string
	// AddDependencyArgs records a new dependency in the manifest; an empty
	// version takes the tool's latest.
	AddDependencyArgs(name, version string) []string
	// InstallArgs fetches everything the project under root declares.
	InstallArgs(root string) []string

	// PrecreatesDir reports whether the project directory must exist before
	// the scaffold command runs.
	PrecreatesDir() bool
	ParseDependencies(stdout []byte) ([]Dependency, error)
	Artifacts(root, name string) []Artifact
}

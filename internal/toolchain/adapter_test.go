package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
)

// fakeRunner records commands and answers with a canned outcome.
type fakeRunner struct {
	mu     sync.Mutex
	cmds   []runner.Command
	stdout []byte
	exit   int
	hook   func(cmd runner.Command)
}

func (f *fakeRunner) Run(_ context.Context, cmd runner.Command) runner.Outcome {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(cmd)
	}
	res := &runner.CommandResult{Name: cmd.Name, Args: cmd.Args, Dir: cmd.Dir, ExitCode: f.exit, Stdout: f.stdout}
	if f.exit != 0 {
		return runner.ToolFailure(res)
	}
	return runner.Success(res)
}

func (f *fakeRunner) last(t *testing.T) runner.Command {
	t.Helper()
	require.NotEmpty(t, f.cmds)
	return f.cmds[len(f.cmds)-1]
}

func newAdapter(r runner.Runner) *Adapter {
	return NewAdapter(r, []Toolchain{NewGo(""), NewCargo(""), NewPython("")}, Config{
		DefaultKind: manifest.KindGo,
		Timeouts:    Timeouts{Build: 10 * time.Minute, Run: 30 * time.Minute, Default: 2 * time.Minute},
	}, zerolog.Nop())
}

func project(t *testing.T, kind manifest.Kind) registry.Project {
	t.Helper()
	return registry.Project{Name: "demo", Root: t.TempDir(), Kind: kind}
}

func TestIntentArguments(t *testing.T) {
	tests := []struct {
		name    string
		kind    manifest.Kind
		call    func(a *Adapter, p registry.Project) runner.Outcome
		bin     string
		args    []string
		env     []string
		timeout time.Duration
	}{
		{"go build", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Build(context.Background(), p, BuildOptions{})
		}, "go", []string{"build", "./..."}, nil, 10 * time.Minute},
		{"go release build", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Build(context.Background(), p, BuildOptions{Release: true, Output: "bin/demo"})
		}, "go", []string{"build", "-trimpath", "-o", "bin/demo", "."}, nil, 10 * time.Minute},
		{"go test", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Test(context.Background(), p)
		}, "go", []string{"test", "./..."}, nil, 2 * time.Minute},
		{"go run", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Run(context.Background(), p, []string{"-v", "x"})
		}, "go", []string{"run", ".", "-v", "x"}, nil, 30 * time.Minute},
		{"go clean", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Clean(context.Background(), p)
		}, "go", []string{"clean"}, nil, 2 * time.Minute},
		{"go check", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Check(context.Background(), p)
		}, "go", []string{"vet", "./..."}, nil, 2 * time.Minute},
		{"cargo build", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Build(context.Background(), p, BuildOptions{})
		}, "cargo", []string{"build"}, []string{"RUST_BACKTRACE=1"}, 10 * time.Minute},
		{"cargo release build", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Build(context.Background(), p, BuildOptions{Release: true})
		}, "cargo", []string{"build", "--release"}, []string{"RUST_BACKTRACE=1"}, 10 * time.Minute},
		{"cargo run no args", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Run(context.Background(), p, nil)
		}, "cargo", []string{"run"}, []string{"RUST_BACKTRACE=1"}, 30 * time.Minute},
		{"cargo run args", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Run(context.Background(), p, []string{"--flag"})
		}, "cargo", []string{"run", "--", "--flag"}, []string{"RUST_BACKTRACE=1"}, 30 * time.Minute},
		{"cargo test", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Test(context.Background(), p)
		}, "cargo", []string{"test"}, []string{"RUST_BACKTRACE=1"}, 2 * time.Minute},
		{"cargo check", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Check(context.Background(), p)
		}, "cargo", []string{"check"}, []string{"RUST_BACKTRACE=1"}, 2 * time.Minute},
		{"go add dependency", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.AddDependency(context.Background(), p, "github.com/rs/zerolog", "v1.33.0")
		}, "go", []string{"get", "github.com/rs/zerolog@v1.33.0"}, nil, 10 * time.Minute},
		{"go add latest", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.AddDependency(context.Background(), p, "golang.org/x/mod", "")
		}, "go", []string{"get", "golang.org/x/mod"}, nil, 10 * time.Minute},
		{"go install", manifest.KindGo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.InstallDependencies(context.Background(), p)
		}, "go", []string{"mod", "download"}, nil, 10 * time.Minute},
		{"cargo add dependency", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.AddDependency(context.Background(), p, "serde", "1.0")
		}, "cargo", []string{"add", "serde@1.0"}, []string{"RUST_BACKTRACE=1"}, 10 * time.Minute},
		{"cargo install", manifest.KindCargo, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.InstallDependencies(context.Background(), p)
		}, "cargo", []string{"fetch"}, []string{"RUST_BACKTRACE=1"}, 10 * time.Minute},
		{"python build", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Build(context.Background(), p, BuildOptions{Release: true})
		}, "python3", []string{"-O", "-m", "compileall", "-q", "-x", compileExclude, "."}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 10 * time.Minute},
		{"python test", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Test(context.Background(), p)
		}, "python3", []string{"-m", "unittest", "discover", "-v"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 2 * time.Minute},
		{"python run default script", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Run(context.Background(), p, []string{"--verbose"})
		}, "python3", []string{"main.py", "--verbose"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 30 * time.Minute},
		{"python run script", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Run(context.Background(), p, []string{"tools/gen.py", "x"})
		}, "python3", []string{"tools/gen.py", "x"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 30 * time.Minute},
		{"python check", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Check(context.Background(), p)
		}, "python3", []string{"-m", "pip", "check"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 2 * time.Minute},
		{"python pin dependency", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.AddDependency(context.Background(), p, "requests", "2.31.0")
		}, "python3", []string{"-m", "pip", "install", "requests==2.31.0"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 10 * time.Minute},
		{"python constrain dependency", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.AddDependency(context.Background(), p, "rich", ">=13")
		}, "python3", []string{"-m", "pip", "install", "rich>=13"}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 10 * time.Minute},
		{"python install project", manifest.KindPython, func(a *Adapter, p registry.Project) runner.Outcome {
			return a.InstallDependencies(context.Background(), p)
		}, "python3", []string{"-m", "pip", "install", "-e", "."}, []string{"PYTHONUNBUFFERED=1", "PIP_DISABLE_PIP_VERSION_CHECK=1"}, 10 * time.Minute},
		{"no manifest uses default", "", func(a *Adapter, p registry.Project) runner.Outcome {
			return a.Clean(context.Background(), p)
		}, "go", []string{"clean"}, nil, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{}
			p := project(t, tt.kind)
			out := tt.call(newAdapter(fr), p)
			require.True(t, out.OK(), out.Reason)

			cmd := fr.last(t)
			assert.Equal(t, tt.bin, cmd.Name)
			assert.Equal(t, tt.args, cmd.Args)
			assert.Equal(t, p.Root, cmd.Dir)
			assert.Equal(t, tt.env, cmd.Env)
			assert.Equal(t, tt.timeout, cmd.Timeout)
		})
	}
}

func TestAddDependency_RejectsBadInput(t *testing.T) {
	for _, tt := range []struct{ name, version string }{
		{"", "1.0"},
		{"--upgrade", ""},
		{"serde features", ""},
		{"serde@1.0", ""},
		{"serde", "1.0 --force"},
	} {
		fr := &fakeRunner{}
		out := newAdapter(fr).AddDependency(context.Background(), project(t, manifest.KindCargo), tt.name, tt.version)
		assert.Equal(t, runner.StatusExecutionFailure, out.Status, tt.name)
		assert.ErrorIs(t, out.Err, perrors.ErrInvalidInput)
		assert.Empty(t, fr.cmds)
	}
}

func TestPython_RequirementsAndVenv(t *testing.T) {
	fr := &fakeRunner{}
	a := newAdapter(fr)
	p := project(t, manifest.KindPython)
	require.NoError(t, os.WriteFile(filepath.Join(p.Root, "requirements.txt"), []byte("flask\n"), 0o644))

	out := a.InstallDependencies(context.Background(), p)
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, []string{"-m", "pip", "install", "-r", "requirements.txt"}, fr.last(t).Args)
	assert.Equal(t, "python3", fr.last(t).Name)

	// With a virtual environment present its interpreter is used.
	venv := venvPython(filepath.Join(p.Root, "venv"))
	require.NoError(t, os.MkdirAll(filepath.Dir(venv), 0o755))
	require.NoError(t, os.WriteFile(venv, nil, 0o755))
	out = a.Test(context.Background(), p)
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, venv, fr.last(t).Name)
}

func TestIntent_InvalidRootFailsFast(t *testing.T) {
	fr := &fakeRunner{}
	a := newAdapter(fr)
	p := registry.Project{Name: "gone", Root: filepath.Join(t.TempDir(), "gone"), Kind: manifest.KindGo}

	out := a.Build(context.Background(), p, BuildOptions{})
	assert.Equal(t, runner.StatusExecutionFailure, out.Status)
	assert.ErrorIs(t, out.Err, perrors.ErrInvalidPath)
	assert.Empty(t, fr.cmds)
}

func TestBuild_CargoRejectsOutput(t *testing.T) {
	fr := &fakeRunner{}
	out := newAdapter(fr).Build(context.Background(), project(t, manifest.KindCargo), BuildOptions{Output: "x"})
	assert.ErrorIs(t, out.Err, perrors.ErrUnsupported)
	assert.Empty(t, fr.cmds)
}

func TestBuildDir_LDFlags(t *testing.T) {
	fr := &fakeRunner{}
	dir := t.TempDir()
	out := newAdapter(fr).BuildDir(context.Background(), manifest.KindGo, dir, BuildOptions{
		Output:  "/tmp/devterm.staged",
		Package: "./cmd/devterm",
		LDFlags: "-X main.version=1.2.3",
	})
	require.True(t, out.OK())
	assert.Equal(t, []string{"build", "-ldflags", "-X main.version=1.2.3", "-o", "/tmp/devterm.staged", "./cmd/devterm"}, fr.last(t).Args)
	assert.Equal(t, dir, fr.last(t).Dir)
}

func TestToolFailurePassesThrough(t *testing.T) {
	fr := &fakeRunner{exit: 101}
	out := newAdapter(fr).Test(context.Background(), project(t, manifest.KindCargo))
	assert.Equal(t, runner.StatusToolFailure, out.Status)
	assert.Equal(t, 101, out.Result.ExitCode)
}

func TestNewProject_Go(t *testing.T) {
	for _, tmpl := range []Template{TemplateBasic, TemplateLibrary, TemplateCLI} {
		t.Run(string(tmpl), func(t *testing.T) {
			fr := &fakeRunner{}
			ws := t.TempDir()
			root, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{
				Workspace: ws, Name: "my-app", Module: "example.com/my-app", Kind: manifest.KindGo, Template: tmpl,
			})
			require.True(t, out.OK(), out.Reason)
			assert.Equal(t, filepath.Join(ws, "my-app"), root)

			cmd := fr.last(t)
			assert.Equal(t, []string{"mod", "init", "example.com/my-app"}, cmd.Args)
			assert.Equal(t, root, cmd.Dir)

			switch tmpl {
			case TemplateLibrary:
				data, err := os.ReadFile(filepath.Join(root, "lib.go"))
				require.NoError(t, err)
				assert.Contains(t, string(data), "package myapp")
				assert.FileExists(t, filepath.Join(root, "lib_test.go"))
			default:
				data, err := os.ReadFile(filepath.Join(root, "main.go"))
				require.NoError(t, err)
				assert.Contains(t, string(data), "package main")
				assert.Contains(t, string(data), "my-app")
			}
		})
	}
}

func TestNewProject_GoFailureRemovesDir(t *testing.T) {
	fr := &fakeRunner{exit: 1}
	ws := t.TempDir()
	root, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{Workspace: ws, Name: "broken", Kind: manifest.KindGo})
	assert.Equal(t, runner.StatusToolFailure, out.Status)
	assert.NoDirExists(t, root)
}

func TestNewProject_TemplateFailureRemovesDir(t *testing.T) {
	fr := &fakeRunner{}
	fr.hook = func(cmd runner.Command) {
		// A directory where the template's main.go belongs makes the write fail.
		_ = os.Mkdir(filepath.Join(cmd.Dir, "main.go"), 0o755)
	}
	ws := t.TempDir()
	a := newAdapter(fr)
	req := NewProjectRequest{Workspace: ws, Name: "app", Kind: manifest.KindGo}

	root, out := a.NewProject(context.Background(), req)
	assert.Equal(t, runner.StatusExecutionFailure, out.Status)
	assert.NoDirExists(t, root)

	fr.hook = nil
	root, out = a.NewProject(context.Background(), req)
	require.True(t, out.OK(), out.Reason)
	assert.FileExists(t, filepath.Join(root, "main.go"))
}

func TestNewProject_CargoFailureRemovesPartialDir(t *testing.T) {
	fr := &fakeRunner{exit: 101}
	fr.hook = func(cmd runner.Command) {
		_ = os.MkdirAll(filepath.Join(cmd.Dir, cmd.Args[1], "src"), 0o755)
	}
	root, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{
		Workspace: t.TempDir(), Name: "tool", Kind: manifest.KindCargo,
	})
	assert.Equal(t, runner.StatusToolFailure, out.Status)
	assert.NoDirExists(t, root)
}

func TestNewProject_Cargo(t *testing.T) {
	fr := &fakeRunner{}
	fr.hook = func(cmd runner.Command) {
		// cargo new creates the project directory itself.
		_ = os.MkdirAll(filepath.Join(cmd.Dir, cmd.Args[1], "src"), 0o755)
	}
	ws := t.TempDir()
	root, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{
		Workspace: ws, Name: "tool", Kind: manifest.KindCargo, Template: TemplateCLI,
	})
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, filepath.Join(ws, "tool"), root)

	cmd := fr.last(t)
	assert.Equal(t, []string{"new", "tool", "--vcs", "none"}, cmd.Args)
	assert.Equal(t, ws, cmd.Dir)
	data, err := os.ReadFile(filepath.Join(root, "src", "main.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "usage: tool")
}

func TestNewProject_CargoLibrary(t *testing.T) {
	fr := &fakeRunner{}
	_, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{
		Workspace: t.TempDir(), Name: "lib", Kind: manifest.KindCargo, Template: TemplateLibrary,
	})
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, []string{"new", "lib", "--lib", "--vcs", "none"}, fr.last(t).Args)
}

func TestNewProject_Python(t *testing.T) {
	for _, tmpl := range []Template{TemplateBasic, TemplateLibrary, TemplateCLI} {
		t.Run(string(tmpl), func(t *testing.T) {
			fr := &fakeRunner{}
			ws := t.TempDir()
			root, out := newAdapter(fr).NewProject(context.Background(), NewProjectRequest{
				Workspace: ws, Name: "scripts", Kind: manifest.KindPython, Template: tmpl,
			})
			require.True(t, out.OK(), out.Reason)
			assert.Equal(t, filepath.Join(ws, "scripts"), root)

			cmd := fr.last(t)
			assert.Equal(t, "python3", cmd.Name)
			assert.Equal(t, []string{"-m", "venv", ".venv"}, cmd.Args)
			assert.Equal(t, root, cmd.Dir)

			m, err := manifest.Load(root)
			require.NoError(t, err)
			assert.Equal(t, manifest.KindPython, m.Kind)
			assert.Equal(t, "scripts", m.Name)
			if tmpl == TemplateLibrary {
				assert.FileExists(t, filepath.Join(root, "test_lib.py"))
			} else {
				assert.FileExists(t, filepath.Join(root, "main.py"))
			}
		})
	}
}

func TestNewProject_Rejections(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(ws, "taken"), 0o755))

	tests := []struct {
		name string
		req  NewProjectRequest
		want error
	}{
		{"existing dir", NewProjectRequest{Workspace: ws, Name: "taken"}, perrors.ErrInvalidPath},
		{"bad name", NewProjectRequest{Workspace: ws, Name: "../escape"}, perrors.ErrInvalidInput},
		{"missing workspace", NewProjectRequest{Workspace: filepath.Join(ws, "nope"), Name: "x"}, perrors.ErrInvalidPath},
		{"unknown kind", NewProjectRequest{Workspace: ws, Name: "x", Kind: "maven"}, perrors.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{}
			_, out := newAdapter(fr).NewProject(context.Background(), tt.req)
			assert.Equal(t, runner.StatusExecutionFailure, out.Status)
			assert.ErrorIs(t, out.Err, tt.want)
			assert.Empty(t, fr.cmds)
		})
	}
}

const goListOutput = `{
	"Path": "example.com/demo",
	"Main": true,
	"Dir": "/src/demo"
}
{
	"Path": "github.com/rs/zerolog",
	"Version": "v1.32.0"
}
{
	"Path": "golang.org/x/sys",
	"Version": "v0.12.0",
	"Indirect": true,
	"Replace": {"Path": "../sys"}
}
`

func TestDependencyInfo_Go(t *testing.T) {
	fr := &fakeRunner{stdout: []byte(goListOutput)}
	listing, err := newAdapter(fr).DependencyInfo(context.Background(), project(t, manifest.KindGo))
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "-m", "-json", "all"}, fr.last(t).Args)
	assert.Equal(t, []Dependency{
		{Name: "example.com/demo", Source: "main"},
		{Name: "github.com/rs/zerolog", Version: "v1.32.0", Source: "module"},
		{Name: "golang.org/x/sys", Version: "v0.12.0", Source: "replace ../sys"},
	}, listing.Dependencies)
	assert.True(t, listing.Outcome.OK())
}

func TestDependencyInfo_Cargo(t *testing.T) {
	stdout := `{"packages":[
		{"name":"demo","version":"0.1.0","source":null},
		{"name":"serde","version":"1.0.190","source":"registry+https://github.com/rust-lang/crates.io-index"}
	],"version":1}`
	fr := &fakeRunner{stdout: []byte(stdout)}
	listing, err := newAdapter(fr).DependencyInfo(context.Background(), project(t, manifest.KindCargo))
	require.NoError(t, err)
	assert.Equal(t, []string{"metadata", "--format-version", "1"}, fr.last(t).Args)
	require.Len(t, listing.Dependencies, 2)
	assert.Equal(t, "path", listing.Dependencies[0].Source)
	assert.Equal(t, "serde", listing.Dependencies[1].Name)
}

func TestDependencyInfo_Python(t *testing.T) {
	fr := &fakeRunner{stdout: []byte(`[{"name": "pip", "version": "24.0"}, {"name": "scripts", "version": "0.1.0", "editable_project_location": "/src/scripts"}]`)}
	listing, err := newAdapter(fr).DependencyInfo(context.Background(), project(t, manifest.KindPython))
	require.NoError(t, err)
	assert.Equal(t, []string{"-m", "pip", "list", "--format", "json"}, fr.last(t).Args)
	assert.Equal(t, []Dependency{
		{Name: "pip", Version: "24.0", Source: "pypi"},
		{Name: "scripts", Version: "0.1.0", Source: "path:/src/scripts"},
	}, listing.Dependencies)
}

func TestDependencyInfo_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		kind   manifest.Kind
		stdout string
	}{
		{"go garbage", manifest.KindGo, "warning: something\n"},
		{"go empty", manifest.KindGo, ""},
		{"cargo garbage", manifest.KindCargo, "not json"},
		{"cargo no packages", manifest.KindCargo, `{"version":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{stdout: []byte(tt.stdout)}
			listing, err := newAdapter(fr).DependencyInfo(context.Background(), project(t, tt.kind))
			var mo *perrors.MalformedOutputError
			require.ErrorAs(t, err, &mo)
			assert.Equal(t, []byte(tt.stdout), mo.Raw)
			assert.Empty(t, listing.Dependencies)
			assert.True(t, listing.Outcome.OK(), "raw outcome is retained")
		})
	}
}

func TestDependencyInfo_ToolFailure(t *testing.T) {
	fr := &fakeRunner{exit: 1}
	listing, err := newAdapter(fr).DependencyInfo(context.Background(), project(t, manifest.KindGo))
	require.Error(t, err)
	assert.NotErrorIs(t, err, perrors.ErrMalformedOutput)
	assert.Equal(t, runner.StatusToolFailure, listing.Outcome.Status)
}

func TestBuildInfo(t *testing.T) {
	a := newAdapter(&fakeRunner{})
	p := project(t, manifest.KindCargo)
	p.Manifest = &manifest.Manifest{Kind: manifest.KindCargo, Name: "demo-bin"}
	release := filepath.Join(p.Root, "target", "release", "demo-bin"+exeSuffix())
	require.NoError(t, os.MkdirAll(filepath.Dir(release), 0o755))
	require.NoError(t, os.WriteFile(release, []byte("bin"), 0o755))

	info, err := a.BuildInfo(p)
	require.NoError(t, err)
	require.Len(t, info.Artifacts, 2)
	assert.Equal(t, "debug", info.Artifacts[0].Profile)
	assert.False(t, info.Artifacts[0].Exists)
	assert.True(t, info.Artifacts[1].Exists)
	assert.Equal(t, int64(3), info.Artifacts[1].Size)

	goInfo, err := a.BuildInfo(registry.Project{Name: "g", Root: p.Root, Kind: manifest.KindGo,
		Manifest: &manifest.Manifest{Name: "example.com/tools/hello"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root, "hello"+exeSuffix()), goInfo.Artifacts[0].Path)
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "myapp", packageName("my-app"))
	assert.Equal(t, "p9lives", packageName("9lives"))
	assert.Equal(t, "lib", packageName("---"))
	assert.Equal(t, "hello", packageName("example.com/hello"))
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("")
	require.NoError(t, err)
	assert.Equal(t, TemplateBasic, tmpl)
	_, err = ParseTemplate("web")
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

package pipeline

import (
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/toolchain"
	"github.com/p-blackswan/devterm/internal/vcs"
)

// Intent is any operation a step can perform: a toolchain intent or a VCS intent.
type Intent string

const (
	IntentNewProject     = Intent(toolchain.IntentNewProject)
	IntentBuild          = Intent(toolchain.IntentBuild)
	IntentTest           = Intent(toolchain.IntentTest)
	IntentRun            = Intent(toolchain.IntentRun)
	IntentClean          = Intent(toolchain.IntentClean)
	IntentDependencyInfo = Intent(toolchain.IntentDependencyInfo)
	IntentCheck          = Intent(toolchain.IntentCheck)
	IntentAddDependency  = Intent(toolchain.IntentAddDependency)
	IntentInstall        = Intent(toolchain.IntentInstall)

	IntentStatus       = Intent(vcs.IntentStatus)
	IntentStage        = Intent(vcs.IntentStage)
	IntentCommit       = Intent(vcs.IntentCommit)
	IntentPush         = Intent(vcs.IntentPush)
	IntentPull         = Intent(vcs.IntentPull)
	IntentBranchList   = Intent(vcs.IntentBranchList)
	IntentBranchCreate = Intent(vcs.IntentBranchCreate)
	IntentInit         = Intent(vcs.IntentInit)
	IntentLog          = Intent(vcs.IntentLog)
	IntentTag          = Intent(vcs.IntentTag)
	IntentRemotes      = Intent(vcs.IntentRemotes)
)

// Params carries intent-specific inputs. Fields irrelevant to an intent are ignored.
type Params struct {
	Args      []string // run arguments, or paths to stage
	Build     toolchain.BuildOptions
	Message   string // commit or tag message
	Remote    string
	Branch    string
	Name      string // branch, tag or dependency name
	Version   string // add_dependency; empty takes the latest
	Limit     int    // log entries
	Workspace string // new_project; defaults to the orchestrator workspace
	Kind      manifest.Kind
	Module    string
	Template  toolchain.Template
}

// Step is one pipeline entry. A required step that does not succeed aborts
// the pipeline; a non-required one records its outcome and execution continues.
type Step struct {
	Intent   Intent
	Project  string
	Required bool
	Params   Params
}

// Pipeline is a named, ordered list of steps.
type Pipeline struct {
	Name  string
	Steps []Step
}

// Standard pipeline names.
const (
	NameCreateAndBuild = "create_and_build"
	NameBuildTestRun   = "build_test_run"
	NameCommitAndPush  = "commit_and_push"
)

// CreateAndBuild scaffolds a project, registers it, then builds it.
func CreateAndBuild(name string, params Params) Pipeline {
	return Pipeline{
		Name: NameCreateAndBuild,
		Steps: []Step{
			{Intent: IntentNewProject, Project: name, Required: true, Params: params},
			{Intent: IntentBuild, Project: name, Required: true},
		},
	}
}

// BuildTestRun builds and tests a project, then runs it. A failing run does
// not fail the pipeline.
func BuildTestRun(project string, runArgs []string) Pipeline {
	return Pipeline{
		Name: NameBuildTestRun,
		Steps: []Step{
			{Intent: IntentBuild, Project: project, Required: true},
			{Intent: IntentTest, Project: project, Required: true},
			{Intent: IntentRun, Project: project, Required: false, Params: Params{Args: runArgs}},
		},
	}
}

// CommitAndPush stages everything, commits with message and pushes the
// current branch.
func CommitAndPush(project, message string) Pipeline {
	return Pipeline{
		Name: NameCommitAndPush,
		Steps: []Step{
			{Intent: IntentStage, Project: project, Required: true},
			{Intent: IntentCommit, Project: project, Required: true, Params: Params{Message: message}},
			{Intent: IntentPush, Project: project, Required: true},
		},
	}
}

// Single wraps one intent as a one-step pipeline named after the intent.
func Single(intent Intent, project string, params Params) Pipeline {
	return Pipeline{
		Name:  string(intent),
		Steps: []Step{{Intent: intent, Project: project, Required: true, Params: params}},
	}
}

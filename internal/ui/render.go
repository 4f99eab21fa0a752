package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/p-blackswan/devterm/internal/health"
	"github.com/p-blackswan/devterm/internal/pipeline"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
	"github.com/p-blackswan/devterm/internal/selfupdate"
	"github.com/p-blackswan/devterm/internal/store"
	"github.com/p-blackswan/devterm/internal/toolchain"
	"github.com/p-blackswan/devterm/internal/vcs"
)

// Renderer writes human-readable views to w.
type Renderer struct {
	w  io.Writer
	st styles
}

// New creates a Renderer.
func New(w io.Writer, theme Theme) *Renderer {
	return &Renderer{w: w, st: newStyles(theme)}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Renderer) badge(status string) string {
	switch status {
	case "success", "ok", string(selfupdate.PhaseComplete), "succeeded":
		return r.st.ok.Render(status)
	case "tool_failure", "degraded", "malformed_output":
		return r.st.warn.Render(status)
	default:
		return r.st.fail.Render(status)
	}
}

// Outcome prints the status line of an outcome followed by the captured
// output, unmodified.
func (r *Renderer) Outcome(title string, out runner.Outcome) {
	line := fmt.Sprintf("%s %s", r.st.header.Render(title), r.badge(out.Status.String()))
	if res := out.Result; res != nil {
		cmd := runner.Command{Name: res.Name, Args: res.Args}
		line += r.st.faint.Render(fmt.Sprintf("  %s (exit %d, %s)", cmd, res.ExitCode, res.Duration.Round(time.Millisecond)))
	}
	r.printf("%s\n", line)
	if out.Status == runner.StatusExecutionFailure && out.Reason != "" {
		r.printf("  %s\n", r.st.fail.Render(out.Reason))
	}
	if res := out.Result; res != nil {
		r.stream(res.Stdout)
		r.stream(res.Stderr)
	}
}

func (r *Renderer) stream(b []byte) {
	if len(b) == 0 {
		return
	}
	r.w.Write(b)
	if b[len(b)-1] != '\n' {
		r.printf("\n")
	}
}

// Pipeline prints each executed step and the final verdict. Output of
// failed steps is included.
func (r *Renderer) Pipeline(res pipeline.Result) {
	r.printf("%s %s\n", r.st.header.Render("pipeline"), res.Pipeline)
	for _, s := range res.Steps {
		req := "optional"
		if s.Step.Required {
			req = "required"
		}
		r.printf("  %d. %-18s %-10s %s %s\n",
			s.Index+1, s.Step.Intent, s.Step.Project, r.badge(s.Status()),
			r.st.faint.Render(fmt.Sprintf("%s, %s", req, s.Duration.Round(time.Millisecond))))
		if !s.Succeeded() {
			if err := s.Failure(); err != nil {
				r.printf("     %s\n", r.st.warn.Render(err.Error()))
			}
			if s.Outcome.Result != nil {
				r.stream(s.Outcome.Result.Stdout)
				r.stream(s.Outcome.Result.Stderr)
			}
		}
	}
	if res.Succeeded() {
		r.printf("%s\n", r.st.ok.Render(res.Summary()))
	} else {
		r.printf("%s\n", r.st.fail.Render(res.Summary()))
	}
}

// Session prints a self-update session.
func (r *Renderer) Session(s *selfupdate.Session) {
	r.printf("%s %s %s\n", r.st.header.Render("self-update"), r.st.faint.Render(s.ID), r.badge(string(s.Phase)))
	phases := make([]string, 0, len(s.Transitions))
	for _, p := range s.Phases() {
		phases = append(phases, string(p))
	}
	if len(phases) > 0 {
		r.printf("  phases: %s\n", strings.Join(phases, " -> "))
	}
	r.printf("  binary: %s\n  backup: %s\n", s.Paths.Binary, s.Paths.Backup)
	if s.Build.Result != nil && !s.Build.OK() {
		r.Outcome("build", s.Build)
	}
	if s.Verify.Result != nil && !s.Verify.OK() {
		r.Outcome("verify", s.Verify)
	}
	switch {
	case s.Err != nil:
		r.printf("%s\n", r.st.fail.Render(s.Err.Error()))
	case s.Phase == selfupdate.PhaseComplete:
		r.printf("%s\n", r.st.ok.Render("restart devterm to use the new binary"))
	}
}

// Projects prints the registry in registration order.
func (r *Renderer) Projects(projects []registry.Project) {
	if len(projects) == 0 {
		r.printf("%s\n", r.st.faint.Render("no projects registered"))
		return
	}
	width := 0
	for _, p := range projects {
		width = max(width, lipgloss.Width(p.Name))
	}
	for _, p := range projects {
		state := string(p.ManifestState)
		if p.ManifestState != registry.ManifestOK {
			state = r.st.warn.Render(state)
		}
		kind := string(p.Kind)
		if kind == "" {
			kind = "-"
		}
		r.printf("%-*s  %-5s  %s  %s\n", width, p.Name, kind, state, r.st.faint.Render(p.Root))
	}
}

// VCSStatus prints a parsed status.
func (r *Renderer) VCSStatus(s vcs.Status) {
	head := s.Branch
	if s.Detached {
		head = "(detached)"
	}
	line := r.st.info.Render(head)
	if s.Upstream != "" {
		line += r.st.faint.Render(fmt.Sprintf(" ... %s [ahead %d, behind %d]", s.Upstream, s.Ahead, s.Behind))
	}
	r.printf("%s\n", line)
	if s.Clean() {
		r.printf("%s\n", r.st.ok.Render("working tree clean"))
		return
	}
	for _, e := range s.Entries {
		path := e.Path
		if e.OrigPath != "" {
			path = e.OrigPath + " -> " + e.Path
		}
		code := r.st.warn.Render(e.Code)
		if e.Staged() {
			code = r.st.ok.Render(e.Code)
		}
		r.printf(" %s %s\n", code, path)
	}
}

// Branches prints local branches, marking the current one.
func (r *Renderer) Branches(b vcs.BranchList) {
	for _, name := range b.Branches {
		if name == b.Current {
			r.printf("* %s\n", r.st.ok.Render(name))
			continue
		}
		r.printf("  %s\n", name)
	}
}

// Log prints commits newest first.
func (r *Renderer) Log(commits []vcs.Commit) {
	for _, c := range commits {
		r.printf("%s %s\n", r.st.warn.Render(c.Hash), c.Subject)
	}
}

// Remotes prints configured remotes.
func (r *Renderer) Remotes(remotes []vcs.Remote) {
	for _, rm := range remotes {
		r.printf("%s\t%s %s\n", rm.Name, rm.URL, r.st.faint.Render("("+rm.Direction+")"))
	}
}

// Dependencies prints a dependency listing.
func (r *Renderer) Dependencies(l toolchain.DependencyListing) {
	r.printf("%s %s (%d)\n", r.st.header.Render("dependencies"), l.Project, len(l.Dependencies))
	for _, d := range l.Dependencies {
		r.printf("  %-40s %-20s %s\n", d.Name, d.Version, r.st.faint.Render(d.Source))
	}
}

// BuildInfo prints expected artifacts and whether they exist.
func (r *Renderer) BuildInfo(info toolchain.BuildInfo) {
	r.printf("%s %s (%s)\n", r.st.header.Render("artifacts"), info.Project, info.Kind)
	for _, a := range info.Artifacts {
		if !a.Exists {
			r.printf("  %-8s %s %s\n", a.Profile, a.Path, r.st.faint.Render("(not built)"))
			continue
		}
		r.printf("  %-8s %s %s\n", a.Profile, a.Path,
			r.st.faint.Render(fmt.Sprintf("(%d bytes, %s)", a.Size, a.ModTime.Format(time.DateTime))))
	}
}

// Health prints doctor results and the overall status.
func (r *Renderer) Health(results []health.Result) {
	for _, res := range results {
		r.printf("%-22s %s %s\n", res.Name, r.badge(string(res.Status)), r.st.faint.Render(res.Detail))
	}
	r.printf("overall: %s\n", r.badge(string(health.Overall(results))))
}

// History prints run records newest first.
func (r *Renderer) History(runs []*store.RunRecord) {
	if len(runs) == 0 {
		r.printf("%s\n", r.st.faint.Render("no runs recorded"))
		return
	}
	for _, run := range runs {
		code := "-"
		if run.ExitCode != nil {
			code = fmt.Sprint(*run.ExitCode)
		}
		started := time.UnixMilli(run.StartedAt).Format(time.DateTime)
		r.printf("%s  %-16s %-12s %-18s %s exit=%s %s\n",
			r.st.faint.Render(started), run.Pipeline, run.Project, run.Intent,
			r.badge(run.Status), code, r.st.faint.Render((time.Duration(run.DurationMs) * time.Millisecond).String()))
		if run.Reason != "" && run.Status != "success" {
			r.printf("    %s\n", r.st.faint.Render(run.Reason))
		}
	}
}

// Message prints an informational line.
func (r *Renderer) Message(format string, args ...any) {
	r.printf("%s\n", r.st.info.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (r *Renderer) Error(err error) {
	r.printf("%s %s\n", r.st.fail.Render("error:"), err)
}

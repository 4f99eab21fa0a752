package selfupdate

import (
	"fmt"
	"time"

	"github.com/p-blackswan/devterm/internal/runner"
)

// Phase is a self-update state.
type Phase string

const (
	PhaseBuilding   Phase = "building"
	PhaseVerifying  Phase = "verifying"
	PhaseSwapping   Phase = "swapping"
	PhaseComplete   Phase = "complete"
	PhaseRolledBack Phase = "rolled_back"
)

// Terminal reports whether no further transition can leave p.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseRolledBack
}

// allowed lists the legal successors of each phase. The empty phase is the
// session before Building starts; it may only roll back on a failed
// precondition.
var allowed = map[Phase][]Phase{
	"":             {PhaseBuilding, PhaseRolledBack},
	PhaseBuilding:  {PhaseVerifying, PhaseRolledBack},
	PhaseVerifying: {PhaseSwapping, PhaseRolledBack},
	PhaseSwapping:  {PhaseComplete, PhaseRolledBack},
}

// Paths locates the running binary and the two files a session writes next
// to it.
type Paths struct {
	Binary  string
	Staging string
	Backup  string
}

// Transition is one recorded phase change.
type Transition struct {
	From Phase
	To   Phase
	At   time.Time
}

// Session is the record of one self-update attempt.
type Session struct {
	ID          string
	Version     string
	Paths       Paths
	Phase       Phase
	Transitions []Transition
	Build       runner.Outcome
	Verify      runner.Outcome
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (s *Session) enter(to Phase, at time.Time) error {
	for _, next := range allowed[s.Phase] {
		if next == to {
			s.Transitions = append(s.Transitions, Transition{From: s.Phase, To: to, At: at})
			s.Phase = to
			return nil
		}
	}
	return fmt.Errorf("selfupdate: disallowed transition %q -> %q", s.Phase, to)
}

// Phases returns the sequence of phases the session passed through.
func (s *Session) Phases() []Phase {
	out := make([]Phase, 0, len(s.Transitions))
	for _, t := range s.Transitions {
		out = append(out, t.To)
	}
	return out
}

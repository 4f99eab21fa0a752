package vcs

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StatusEntry is one changed path. Code is the two-letter XY status.
type StatusEntry struct {
	Code     string
	Path     string
	OrigPath string // set for renames and copies
}

// Staged reports whether the index side of the entry has a change.
func (e StatusEntry) Staged() bool {
	return e.Code[0] != ' ' && e.Code[0] != '?' && e.Code[0] != '!'
}

// Untracked reports whether the path is not under version control.
func (e StatusEntry) Untracked() bool { return e.Code == "??" }

// Status is the parsed form of `git status --porcelain=v1 --branch`.
type Status struct {
	Branch   string
	Upstream string
	Ahead    int
	Behind   int
	Detached bool
	Entries  []StatusEntry
}

// Clean reports whether there are no changed or untracked paths.
func (s Status) Clean() bool { return len(s.Entries) == 0 }

// BranchList is the parsed form of `git branch --list`.
type BranchList struct {
	Current  string
	Branches []string
}

// Commit is one line of `git log --oneline`.
type Commit struct {
	Hash    string
	Subject string
}

// Remote is one line of `git remote -v`.
type Remote struct {
	Name      string
	URL       string
	Direction string // fetch or push
}

var trackingRe = regexp.MustCompile(`(ahead|behind) (\d+)`)

func parseStatus(out []byte) (Status, error) {
	var st Status
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			parseBranchHeader(line[3:], &st)
			continue
		}
		if len(line) < 4 || line[2] != ' ' {
			return Status{}, fmt.Errorf("unexpected status line %q", line)
		}
		e := StatusEntry{Code: line[:2], Path: line[3:]}
		if orig, path, ok := strings.Cut(e.Path, " -> "); ok {
			e.OrigPath, e.Path = orig, path
		}
		st.Entries = append(st.Entries, e)
	}
	return st, sc.Err()
}

func parseBranchHeader(h string, st *Status) {
	switch {
	case strings.HasPrefix(h, "No commits yet on "):
		st.Branch = strings.TrimPrefix(h, "No commits yet on ")
		return
	case strings.HasPrefix(h, "Initial commit on "):
		st.Branch = strings.TrimPrefix(h, "Initial commit on ")
		return
	case strings.HasPrefix(h, "HEAD (no branch)"):
		st.Detached = true
		return
	}

	head, tracking, _ := strings.Cut(h, " [")
	branch, upstream, _ := strings.Cut(head, "...")
	st.Branch = branch
	st.Upstream = upstream
	for _, m := range trackingRe.FindAllStringSubmatch(tracking, -1) {
		n, _ := strconv.Atoi(m[2])
		if m[1] == "ahead" {
			st.Ahead = n
		} else {
			st.Behind = n
		}
	}
}

func parseBranches(out []byte) BranchList {
	var bl BranchList
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		current := strings.HasPrefix(line, "* ")
		name := strings.TrimSpace(strings.TrimPrefix(line, "* "))
		// Worktree checkouts are marked with "+ ".
		name = strings.TrimPrefix(name, "+ ")
		if current {
			bl.Current = name
		}
		bl.Branches = append(bl.Branches, name)
	}
	return bl
}

func parseLog(out []byte) ([]Commit, error) {
	var commits []Commit
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		hash, subject, _ := strings.Cut(line, " ")
		if !isHex(hash) {
			return nil, fmt.Errorf("unexpected log line %q", line)
		}
		commits = append(commits, Commit{Hash: hash, Subject: subject})
	}
	return commits, nil
}

func parseRemotes(out []byte) ([]Remote, error) {
	var remotes []Remote
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || !strings.HasPrefix(fields[2], "(") {
			return nil, fmt.Errorf("unexpected remote line %q", line)
		}
		remotes = append(remotes, Remote{
			Name:      fields[0],
			URL:       fields[1],
			Direction: strings.Trim(fields[2], "()"),
		})
	}
	return remotes, nil
}

func isHex(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	"github.com/BurntSushi/toml"
)

type pyprojectFile struct {
	Project *struct {
		Name         string   `toml:"name"`
		Version      string   `toml:"version"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

func parsePyproject(data []byte) (*Manifest, error) {
	var f pyprojectFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, err
	}
	if f.Project == nil || f.Project.Name == "" {
		return nil, errors.New("missing [project] name")
	}
	m := &Manifest{Name: f.Project.Name, Version: f.Project.Version}
	for _, dep := range f.Project.Dependencies {
		req, ok := parseRequirement(dep)
		if !ok {
			return nil, errors.New("dependency " + strings.TrimSpace(dep) + ": no package name")
		}
		m.Dependencies = append(m.Dependencies, req)
	}
	return m, nil
}

// parseRequirements reads a pip requirements file. The project takes the
// name of its directory. Options, includes and comments are skipped.
func parseRequirements(name string, data []byte) (*Manifest, error) {
	m := &Manifest{Name: name}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		req, ok := parseRequirement(line)
		if !ok {
			return nil, errors.New("requirement " + line + ": no package name")
		}
		m.Dependencies = append(m.Dependencies, req)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseRequirement splits a requirement such as `rich[jupyter]>=13; python_version>"3.8"`
// into its name and version constraint. Direct references keep the URL as source.
func parseRequirement(dep string) (Requirement, bool) {
	dep = strings.TrimSpace(dep)
	if i := strings.IndexByte(dep, ';'); i >= 0 {
		dep = strings.TrimSpace(dep[:i])
	}
	end := strings.IndexAny(dep, "[<>=!~@ (")
	if end < 0 {
		end = len(dep)
	}
	req := Requirement{Name: dep[:end]}
	if req.Name == "" {
		return Requirement{}, false
	}
	rest := strings.TrimSpace(dep[end:])
	if strings.HasPrefix(rest, "[") {
		if j := strings.IndexByte(rest, ']'); j >= 0 {
			rest = strings.TrimSpace(rest[j+1:])
		}
	}
	if url, ok := strings.CutPrefix(rest, "@"); ok {
		req.Source = "url:" + strings.TrimSpace(url)
		return req, true
	}
	req.Version = strings.Trim(rest, "() ")
	return req, true
}

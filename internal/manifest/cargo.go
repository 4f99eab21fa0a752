package manifest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

type cargoPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Edition string `toml:"edition"`
}

type cargoFile struct {
	Package      *cargoPackage  `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

func parseCargo(data []byte) (*Manifest, error) {
	var f cargoFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, err
	}
	if f.Package == nil || f.Package.Name == "" {
		return nil, errors.New("missing [package] name")
	}

	m := &Manifest{
		Name:    f.Package.Name,
		Version: f.Package.Version,
		Edition: f.Package.Edition,
	}

	names := make([]string, 0, len(f.Dependencies))
	for name := range f.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		req := Requirement{Name: name}
		switch v := f.Dependencies[name].(type) {
		case string:
			req.Version = v
		case map[string]any:
			req.Version, _ = v["version"].(string)
			if p, ok := v["path"].(string); ok {
				req.Source = "path:" + p
			} else if g, ok := v["git"].(string); ok {
				req.Source = "git:" + g
			}
		default:
			return nil, fmt.Errorf("dependency %q: unexpected value %T", name, v)
		}
		m.Dependencies = append(m.Dependencies, req)
	}
	return m, nil
}

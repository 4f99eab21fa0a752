package manifest

import (
	"errors"

	"golang.org/x/mod/modfile"
)

func parseGoMod(path string, data []byte) (*Manifest, error) {
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return nil, err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return nil, errors.New("missing module directive")
	}

	m := &Manifest{Name: f.Module.Mod.Path}
	if f.Go != nil {
		m.Edition = f.Go.Version
	}
	for _, r := range f.Require {
		m.Dependencies = append(m.Dependencies, Requirement{
			Name:     r.Mod.Path,
			Version:  r.Mod.Version,
			Indirect: r.Indirect,
		})
	}
	return m, nil
}

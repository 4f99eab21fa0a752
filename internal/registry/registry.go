// Package registry is the authoritative list of known project directories.
// Every mutation is written through a Persister; a failed write rolls the
// in-memory change back.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/store"
)

// ManifestState flags whether a project's manifest could be read.
type ManifestState string

const (
	ManifestOK      ManifestState = "ok"
	ManifestMissing ManifestState = "missing"
	ManifestInvalid ManifestState = "invalid"
)

// Project is a registered project directory.
type Project struct {
	Name          string
	Root          string
	Kind          manifest.Kind // empty when no manifest was found
	Manifest      *manifest.Manifest
	ManifestState ManifestState
	ManifestError string
	RegisteredAt  time.Time
}

// CheckRoot verifies the project root still exists and is a readable directory.
func (p Project) CheckRoot() error {
	return checkDir(p.Root)
}

// Persister stores the ordered {name, path} list.
type Persister interface {
	LoadProjects() ([]store.ProjectRecord, error)
	SaveProjects(records []store.ProjectRecord) error
}

// Option configures Register.
type Option func(*registerOptions)

type registerOptions struct {
	overwrite bool
}

// WithOverwrite replaces an existing entry of the same name, keeping its position.
func WithOverwrite() Option {
	return func(o *registerOptions) { o.overwrite = true }
}

// Registry holds projects in insertion order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	projects  map[string]*Project
	persister Persister
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an empty registry. A nil persister keeps the registry in memory.
func New(persister Persister, logger zerolog.Logger) *Registry {
	return &Registry{
		projects:  make(map[string]*Project),
		persister: persister,
		logger:    logger.With().Str("component", "registry").Logger(),
		now:       time.Now,
	}
}

// Load replaces the in-memory state with the persisted list. Entries whose
// root has vanished are kept; operations targeting them fail at CheckRoot.
func (r *Registry) Load() error {
	if r.persister == nil {
		return nil
	}
	records, err := r.persister.LoadProjects()
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.projects = make(map[string]*Project, len(records))
	for _, rec := range records {
		if _, dup := r.projects[rec.Name]; dup {
			r.logger.Warn().Str("name", rec.Name).Msg("duplicate persisted project ignored")
			continue
		}
		p := r.inspect(rec.Name, rec.Path)
		r.order = append(r.order, rec.Name)
		r.projects[rec.Name] = p
	}
	r.logger.Debug().Int("count", len(r.order)).Msg("registry loaded")
	return nil
}

// Register adds a project rooted at path. Relative paths are made absolute.
// A project whose manifest is missing or malformed is still registered and
// flagged through ManifestState.
func (r *Registry) Register(name, path string, opts ...Option) (Project, error) {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateName(name); err != nil {
		return Project{}, err
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return Project{}, fmt.Errorf("%w: %s: %v", perrors.ErrInvalidPath, path, err)
	}
	if err := checkDir(root); err != nil {
		return Project{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.projects[name]; ok && !o.overwrite {
		return Project{}, &perrors.DuplicateNameError{Name: name, Existing: existing.Root}
	}

	undo := r.snapshot()
	p := r.inspect(name, root)
	if _, ok := r.projects[name]; !ok {
		r.order = append(r.order, name)
	}
	r.projects[name] = p

	if err := r.persist(); err != nil {
		undo()
		return Project{}, err
	}
	r.logger.Info().Str("name", name).Str("root", root).Str("manifest", string(p.ManifestState)).Msg("project registered")
	return *p, nil
}

// Resolve returns the project registered under name.
func (r *Registry) Resolve(name string) (Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[name]
	if !ok {
		return Project{}, &perrors.NotFoundError{Name: name}
	}
	return *p, nil
}

// Rescan re-reads the project's manifest. A malformed manifest returns
// *perrors.ManifestParseError and leaves the stored project unchanged.
func (r *Registry) Rescan(name string) (Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[name]
	if !ok {
		return Project{}, &perrors.NotFoundError{Name: name}
	}
	if err := checkDir(p.Root); err != nil {
		return Project{}, err
	}

	m, err := manifest.Load(p.Root)
	var parseErr *perrors.ManifestParseError
	if errors.As(err, &parseErr) {
		r.logger.Warn().Err(err).Str("name", name).Msg("rescan found malformed manifest")
		return Project{}, err
	}

	updated := *p
	switch {
	case err == nil:
		updated.Kind = m.Kind
		updated.Manifest = m
		updated.ManifestState = ManifestOK
		updated.ManifestError = ""
	case errors.Is(err, perrors.ErrManifestMissing):
		updated.Kind = ""
		updated.Manifest = nil
		updated.ManifestState = ManifestMissing
		updated.ManifestError = ""
	default:
		return Project{}, err
	}
	r.projects[name] = &updated
	return updated, nil
}

// Remove forgets a project. The directory on disk is never touched.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[name]; !ok {
		return &perrors.NotFoundError{Name: name}
	}

	undo := r.snapshot()
	delete(r.projects, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}

	if err := r.persist(); err != nil {
		undo()
		return err
	}
	r.logger.Info().Str("name", name).Msg("project removed")
	return nil
}

// List returns every project in insertion order.
func (r *Registry) List() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Project, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, *r.projects[n])
	}
	return out
}

// Discover registers every immediate subdirectory of workspace that holds a
// recognised manifest and is not already known by name or root. It returns
// the projects it added.
func (r *Registry) Discover(workspace string) ([]Project, error) {
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", perrors.ErrInvalidPath, workspace, err)
	}
	if err := checkDir(ws); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(ws)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roots := make(map[string]bool, len(r.projects))
	for _, p := range r.projects {
		roots[p.Root] = true
	}

	undo := r.snapshot()
	var added []Project
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		root := filepath.Join(ws, name)
		if _, known := r.projects[name]; known || roots[root] {
			continue
		}
		if _, _, err := manifest.Detect(root); err != nil {
			continue
		}
		p := r.inspect(name, root)
		r.order = append(r.order, name)
		r.projects[name] = p
		added = append(added, *p)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := r.persist(); err != nil {
		undo()
		return nil, err
	}
	r.logger.Info().Str("workspace", ws).Int("added", len(added)).Msg("workspace discovered")
	return added, nil
}

// inspect builds a Project, reading its manifest. Callers hold the lock.
func (r *Registry) inspect(name, root string) *Project {
	p := &Project{
		Name:          name,
		Root:          root,
		ManifestState: ManifestOK,
		RegisteredAt:  r.now(),
	}
	m, err := manifest.Load(root)
	switch {
	case err == nil:
		p.Kind = m.Kind
		p.Manifest = m
	case errors.Is(err, perrors.ErrManifestParse):
		p.ManifestState = ManifestInvalid
		p.ManifestError = err.Error()
		if kind, _, derr := manifest.Detect(root); derr == nil {
			p.Kind = kind
		}
	default:
		p.ManifestState = ManifestMissing
	}
	return p
}

// snapshot captures the ordered state and returns a function restoring it.
func (r *Registry) snapshot() func() {
	order := append([]string(nil), r.order...)
	projects := make(map[string]*Project, len(r.projects))
	for k, v := range r.projects {
		projects[k] = v
	}
	return func() {
		r.order = order
		r.projects = projects
	}
}

func (r *Registry) persist() error {
	if r.persister == nil {
		return nil
	}
	records := make([]store.ProjectRecord, 0, len(r.order))
	for _, n := range r.order {
		records = append(records, store.ProjectRecord{Name: n, Path: r.projects[n].Root})
	}
	if err := r.persister.SaveProjects(records); err != nil {
		r.logger.Error().Err(err).Msg("persisting registry failed, change rolled back")
		return fmt.Errorf("persist registry: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: project name is empty", perrors.ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: project name %q is not a plain directory name", perrors.ErrInvalidInput, name)
	}
	return nil
}

func checkDir(path string) error {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist", perrors.ErrInvalidPath, path)
	case err != nil:
		return fmt.Errorf("%w: %s: %v", perrors.ErrInvalidPath, path, err)
	case !fi.IsDir():
		return fmt.Errorf("%w: %s is not a directory", perrors.ErrInvalidPath, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", perrors.ErrInvalidPath, path, err)
	}
	return f.Close()
}

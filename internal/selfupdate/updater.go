// Package selfupdate rebuilds devterm from its own source and replaces the
// running binary through a Building, Verifying, Swapping state machine that
// always leaves either the new binary or the original one in place.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/runner"
	"github.com/p-blackswan/devterm/internal/toolchain"
)

const (
	DefaultPackage       = "./cmd/devterm"
	DefaultVerifyTimeout = 30 * time.Second
	stagingSuffix        = ".staged"
	backupSuffix         = ".backup"
)

// Builder compiles a source tree. *toolchain.Adapter satisfies it.
type Builder interface {
	BuildDir(ctx context.Context, kind manifest.Kind, dir string, opts toolchain.BuildOptions) runner.Outcome
}

// Recorder receives terminal session phases.
type Recorder interface {
	RecordSelfUpdate(phase string)
}

// Config configures an Updater. Empty paths are derived from the running
// executable.
type Config struct {
	SourceDir     string
	Package       string
	Version       string // stamped into main.version
	BinaryPath    string // used as is, without symlink resolution
	StagingPath   string
	BackupPath    string
	VerifyArgs    []string // defaults to ["version"]
	SkipVerify    bool
	VerifyTimeout time.Duration
}

// Updater runs self-update sessions. At most one session, or one rollback,
// runs at a time per Updater.
type Updater struct {
	builder Builder
	runner  runner.Runner
	cfg     Config
	metrics Recorder
	logger  zerolog.Logger
	active  atomic.Bool

	executable func() (string, error)
	rename     func(oldpath, newpath string) error
	now        func() time.Time
}

// New creates an Updater. metrics may be nil.
func New(b Builder, r runner.Runner, cfg Config, metrics Recorder, logger zerolog.Logger) *Updater {
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	if len(cfg.VerifyArgs) == 0 {
		cfg.VerifyArgs = []string{"version"}
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	return &Updater{
		builder:    b,
		runner:     r,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "selfupdate.updater").Logger(),
		executable: os.Executable,
		rename:     os.Rename,
		now:        time.Now,
	}
}

// Paths resolves the binary, staging and backup locations.
func (u *Updater) Paths() (Paths, error) {
	bin := u.cfg.BinaryPath
	if bin == "" {
		exe, err := u.executable()
		if err != nil {
			return Paths{}, fmt.Errorf("%w: locate running executable: %v", perrors.ErrPrecondition, err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		bin = exe
	}
	bin, err := filepath.Abs(bin)
	if err != nil {
		return Paths{}, fmt.Errorf("%w: %v", perrors.ErrPrecondition, err)
	}
	p := Paths{Binary: bin, Staging: u.cfg.StagingPath, Backup: u.cfg.BackupPath}
	if p.Staging == "" {
		p.Staging = bin + stagingSuffix
	}
	if p.Backup == "" {
		p.Backup = bin + backupSuffix
	}
	p.Staging = filepath.Clean(p.Staging)
	p.Backup = filepath.Clean(p.Backup)
	return p, nil
}

// Run performs one session. The returned Session is always populated except
// when another session is active, which returns *perrors.BusyError.
// A rolled back session returns an error wrapping perrors.ErrRolledBack and
// its cause; a failed restore returns *perrors.FatalSwapError.
func (u *Updater) Run(ctx context.Context) (*Session, error) {
	if !u.active.CompareAndSwap(false, true) {
		return nil, &perrors.BusyError{Resource: "self-update"}
	}
	defer u.active.Store(false)

	s := &Session{ID: uuid.NewString(), Version: u.cfg.Version, StartedAt: u.now()}
	log := u.logger.With().Str("session", s.ID).Logger()

	paths, err := u.Paths()
	if err == nil {
		s.Paths = paths
		err = u.precondition(paths)
	}
	if err != nil {
		return u.finish(log, s, err)
	}
	log.Info().Str("binary", paths.Binary).Str("source", u.cfg.SourceDir).Str("version", s.Version).Msg("self-update started")

	if err := s.enter(PhaseBuilding, u.now()); err != nil {
		return u.finish(log, s, err)
	}
	if err := u.build(ctx, s); err != nil {
		return u.finish(log, s, err)
	}

	if err := s.enter(PhaseVerifying, u.now()); err != nil {
		return u.finish(log, s, err)
	}
	if err := u.verify(ctx, s); err != nil {
		os.Remove(paths.Staging)
		return u.finish(log, s, err)
	}

	if err := s.enter(PhaseSwapping, u.now()); err != nil {
		return u.finish(log, s, err)
	}
	if err := u.swap(log, paths); err != nil {
		os.Remove(paths.Staging)
		return u.finish(log, s, err)
	}

	return u.finish(log, s, nil)
}

func (u *Updater) finish(log zerolog.Logger, s *Session, cause error) (*Session, error) {
	s.FinishedAt = u.now()

	var fatal *perrors.FatalSwapError
	switch {
	case cause == nil:
		_ = s.enter(PhaseComplete, s.FinishedAt)
		log.Info().Str("backup", s.Paths.Backup).Msg("self-update complete, restart to use the new binary")
	case errors.As(cause, &fatal):
		// The binary may be damaged, so the session is neither complete nor
		// rolled back.
		s.Err = cause
		log.Error().Err(cause).Msg("self-update swap failed and the original binary could not be restored")
		u.record("fatal")
		return s, cause
	default:
		_ = s.enter(PhaseRolledBack, s.FinishedAt)
		s.Err = fmt.Errorf("%w: %w", perrors.ErrRolledBack, cause)
		log.Warn().Err(cause).Msg("self-update rolled back")
	}
	u.record(string(s.Phase))
	return s, s.Err
}

func (u *Updater) record(phase string) {
	if u.metrics != nil {
		u.metrics.RecordSelfUpdate(phase)
	}
}

// Preflight runs the session precondition without starting a session.
func (u *Updater) Preflight() error {
	p, err := u.Paths()
	if err != nil {
		return err
	}
	return u.precondition(p)
}

// precondition checks the paths without touching the filesystem.
func (u *Updater) precondition(p Paths) error {
	if p.Binary == p.Staging || p.Binary == p.Backup || p.Staging == p.Backup {
		return fmt.Errorf("%w: binary, staging and backup paths must differ", perrors.ErrPrecondition)
	}
	fi, err := os.Stat(p.Binary)
	if err != nil {
		return fmt.Errorf("%w: binary %s: %v", perrors.ErrPrecondition, p.Binary, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: binary %s is not a regular file", perrors.ErrPrecondition, p.Binary)
	}
	// A running executable cannot be opened for writing on windows; it is
	// renamed aside instead, which only needs the directory.
	if runtime.GOOS != "windows" {
		if err := writable(p.Binary); err != nil {
			return fmt.Errorf("%w: binary %s not writable: %v", perrors.ErrPrecondition, p.Binary, err)
		}
	}
	if err := writable(filepath.Dir(p.Binary)); err != nil {
		return fmt.Errorf("%w: directory of %s not writable: %v", perrors.ErrPrecondition, p.Binary, err)
	}
	if u.cfg.SourceDir == "" {
		return fmt.Errorf("%w: no source directory configured", perrors.ErrPrecondition)
	}
	if fi, err := os.Stat(u.cfg.SourceDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: source directory %s not found", perrors.ErrPrecondition, u.cfg.SourceDir)
	}
	return nil
}

// build compiles into a session-private file next to the staging path and
// promotes it only on success, so a failed build leaves the filesystem as
// it found it.
func (u *Updater) build(ctx context.Context, s *Session) error {
	staging := s.Paths.Staging
	out := buildOutput(staging, s.ID)

	opts := toolchain.BuildOptions{Output: out, Package: u.cfg.Package}
	if u.cfg.Version != "" {
		opts.LDFlags = "-X main.version=" + u.cfg.Version
	}
	s.Build = u.builder.BuildDir(ctx, manifest.KindGo, u.cfg.SourceDir, opts)
	if !s.Build.OK() {
		os.Remove(out)
		return fmt.Errorf("build: %w", s.Build.Failure())
	}
	if _, err := os.Lstat(staging); err == nil {
		u.logger.Debug().Str("path", staging).Msg("replacing stale staged binary")
	}
	if err := os.Rename(out, staging); err != nil {
		os.Remove(out)
		return fmt.Errorf("build: stage %s: %w", staging, err)
	}
	return nil
}

// buildOutput is the build's private output path for session id.
func buildOutput(staging, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(filepath.Dir(staging), "."+filepath.Base(staging)+"."+id+".build")
}

func (u *Updater) verify(ctx context.Context, s *Session) error {
	staged := s.Paths.Staging
	fi, err := os.Stat(staged)
	if err != nil {
		return fmt.Errorf("verify: staged binary missing: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("verify: staged binary %s is empty", staged)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("verify: staged binary %s is not executable", staged)
	}
	if u.cfg.SkipVerify {
		return nil
	}
	s.Verify = u.runner.Run(ctx, runner.Command{
		Name:    staged,
		Args:    u.cfg.VerifyArgs,
		Dir:     filepath.Dir(staged),
		Timeout: u.cfg.VerifyTimeout,
	})
	if !s.Verify.OK() {
		return fmt.Errorf("verify: self-check: %w", s.Verify.Failure())
	}
	return nil
}

// swap backs up the binary and moves the staged one into its place. On any
// failure after the backup exists the original is restored.
func (u *Updater) swap(log zerolog.Logger, p Paths) error {
	fi, err := os.Stat(p.Binary)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	// Through a temp file, so a failed backup keeps the previous one.
	if err := u.replaceFile(p.Binary, p.Backup); err != nil {
		return fmt.Errorf("swap: backup: %w", err)
	}
	if err := os.Chmod(p.Staging, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	swapErr := u.install(p.Staging, p.Binary)
	if swapErr == nil {
		syncDir(filepath.Dir(p.Binary))
		return nil
	}

	log.Warn().Err(swapErr).Msg("swap failed, restoring backup")
	if err := u.restore(p); err != nil {
		return &perrors.FatalSwapError{
			BinaryPath: p.Binary,
			BackupPath: p.Backup,
			SwapErr:    swapErr,
			RestoreErr: err,
		}
	}
	return fmt.Errorf("swap: %w", swapErr)
}

// install moves src over dst by rename, falling back to a copy when they
// live on different filesystems.
func (u *Updater) install(src, dst string) error {
	if runtime.GOOS == "windows" {
		aside := dst + ".old"
		_ = os.Remove(aside)
		if err := u.rename(dst, aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	err := u.rename(src, dst)
	if isCrossDevice(err) {
		if err = u.replaceFile(src, dst); err == nil {
			os.Remove(src)
		}
	}
	return err
}

// restore puts the backup back in the binary path and confirms the bytes.
func (u *Updater) restore(p Paths) error {
	if err := u.replaceFile(p.Backup, p.Binary); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	same, err := sameContent(p.Backup, p.Binary)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if !same {
		return fmt.Errorf("restore: %s does not match %s after copy", p.Binary, p.Backup)
	}
	return nil
}

// Rollback replaces the binary with the backup kept by a completed session.
func (u *Updater) Rollback(p Paths) error {
	if !u.active.CompareAndSwap(false, true) {
		return &perrors.BusyError{Resource: "self-update"}
	}
	defer u.active.Store(false)

	if p.Binary == "" || p.Backup == "" || filepath.Clean(p.Binary) == filepath.Clean(p.Backup) {
		return fmt.Errorf("%w: rollback needs distinct binary and backup paths", perrors.ErrPrecondition)
	}
	fi, err := os.Stat(p.Backup)
	if err != nil {
		return fmt.Errorf("%w: no backup at %s: %v", perrors.ErrPrecondition, p.Backup, err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: backup %s is empty", perrors.ErrPrecondition, p.Backup)
	}
	if err := writable(filepath.Dir(p.Binary)); err != nil {
		return fmt.Errorf("%w: directory of %s not writable: %v", perrors.ErrPrecondition, p.Binary, err)
	}

	if runtime.GOOS == "windows" {
		aside := p.Binary + ".old"
		_ = os.Remove(aside)
		if err := u.rename(p.Binary, aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	if err := u.restore(p); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	u.logger.Info().Str("binary", p.Binary).Str("backup", p.Backup).Msg("binary restored from backup")
	u.record("manual_rollback")
	return nil
}

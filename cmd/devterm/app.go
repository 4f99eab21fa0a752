package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/devterm/internal/config"
	"github.com/p-blackswan/devterm/internal/health"
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/metrics"
	"github.com/p-blackswan/devterm/internal/pipeline"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
	"github.com/p-blackswan/devterm/internal/selfupdate"
	"github.com/p-blackswan/devterm/internal/store"
	"github.com/p-blackswan/devterm/internal/toolchain"
	"github.com/p-blackswan/devterm/internal/ui"
	"github.com/p-blackswan/devterm/internal/vcs"
)

// state holds the lazily built application so commands that need no
// configuration, like version, never open the database.
type state struct {
	flags struct {
		logLevel string
		plain    bool
	}
	app *app
	ui  *ui.Renderer
}

// app is the wired set of components behind every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	logFile   *os.File
	store     *store.Store
	registry  *registry.Registry
	metrics   *metrics.Metrics
	toolchain *toolchain.Adapter
	git       *vcs.Git
	runner    runner.Runner
	orch      *pipeline.Orchestrator
	ui        *ui.Renderer
}

func (s *state) get(ctx context.Context) (*app, error) {
	if s.app != nil {
		return s.app, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if s.flags.logLevel != "" {
		cfg.LogLevel = s.flags.logLevel
	}
	if s.flags.plain {
		cfg.Theme = "plain"
	}
	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	s.app = a
	s.ui = a.ui
	return a, nil
}

func (s *state) close() {
	if s.app != nil {
		s.app.close()
	}
}

func newLogger(cfg *config.Config) (zerolog.Logger, *os.File, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out io.Writer = os.Stderr
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	var file *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("log file: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("log file: %w", err)
		}
		file = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger
	return logger, file, nil
}

func newApp(ctx context.Context, cfg *config.Config, stdout io.Writer) (*app, error) {
	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, logFile: logFile, ui: ui.New(stdout, ui.ThemeNamed(cfg.Theme))}

	a.store, err = store.New(cfg.DBPath, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if n, err := a.store.PruneRuns(ctx, cfg.HistoryRetention); err != nil {
		logger.Warn().Err(err).Msg("history pruning failed")
	} else if n > 0 {
		logger.Debug().Int64("pruned", n).Msg("old run history removed")
	}

	a.registry = registry.New(a.store, logger)
	if err := a.registry.Load(); err != nil {
		a.close()
		return nil, err
	}

	a.metrics = metrics.New()
	r := runner.NewExec(cfg.OutputLimit, cfg.DefaultTimeout, logger)
	a.runner = r

	kind, _ := manifest.ParseKind(cfg.DefaultKind)
	a.toolchain = toolchain.NewAdapter(r,
		[]toolchain.Toolchain{toolchain.NewGo(cfg.GoBin), toolchain.NewCargo(cfg.CargoBin), toolchain.NewPython(cfg.PythonBin)},
		toolchain.Config{
			DefaultKind: kind,
			Timeouts: toolchain.Timeouts{
				Build:   cfg.BuildTimeout,
				Test:    cfg.TestTimeout,
				Run:     cfg.RunTimeout,
				Default: cfg.DefaultTimeout,
			},
		}, logger)
	a.git = vcs.NewGit(r, vcs.Config{
		Binary:         cfg.GitBin,
		Timeout:        cfg.VCSTimeout,
		NetworkTimeout: cfg.VCSNetworkTimeout,
		NetworkRetries: cfg.VCSNetworkRetries,
		DefaultRemote:  cfg.DefaultRemote,
	}, logger)

	a.orch = pipeline.New(a.registry, a.toolchain, a.git, pipeline.NewLeases(), a.store, a.metrics,
		pipeline.Config{Workspace: cfg.Workspace}, logger)

	return a, nil
}

// updater builds a self-updater from the current self-update settings.
func (a *app) updater(ver string) *selfupdate.Updater {
	su := a.cfg.SelfUpdate
	return selfupdate.New(a.toolchain, a.runner, selfupdate.Config{
		SourceDir:     su.SourceDir,
		Package:       su.Package,
		Version:       ver,
		BinaryPath:    su.Binary,
		StagingPath:   su.Staging,
		BackupPath:    su.Backup,
		VerifyArgs:    su.VerifyArgs,
		SkipVerify:    su.SkipVerify,
		VerifyTimeout: su.VerifyTimeout,
	}, a.metrics, a.logger)
}

// doctor registers the environment checks.
func (a *app) doctor() *health.Checker {
	c := health.NewChecker(0, a.logger)
	c.Register("go", health.Binary(a.cfg.GoBin, a.cfg.DefaultKind == string(manifest.KindGo)))
	c.Register("cargo", health.Binary(a.cfg.CargoBin, a.cfg.DefaultKind == string(manifest.KindCargo)))
	c.Register("python", health.Binary(a.cfg.PythonBin, a.cfg.DefaultKind == string(manifest.KindPython)))
	c.Register("git", health.Binary(a.cfg.GitBin, true))
	c.Register("workspace", health.Directory(a.cfg.Workspace))
	c.Register("registry", health.Ping(func(ctx context.Context) (string, error) {
		st, err := a.store.Stats(ctx)
		return st.String(), err
	}))
	c.Register("self-update target", health.Probe("writable", a.updater(version).Preflight))
	return c
}

func (a *app) close() {
	if a.cfg != nil && a.cfg.MetricsTextfile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.MetricsTextfile).Msg("failed to write metrics textfile")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close registry")
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

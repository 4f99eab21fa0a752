// Package config loads devterm settings from DEVTERM_* environment variables
// overlaid on an optional YAML file. Values in the file may reference the
// environment with ${VAR} or $VAR.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
)

// Prefix is the environment variable prefix.
const Prefix = "DEVTERM"

// Config holds all devterm configuration. Precedence is defaults, then the
// YAML file, then environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" yaml:"environment"` // "development" logs to a console writer
	LogLevel    string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	LogFile     string `envconfig:"LOG_FILE" yaml:"log_file"`
	ConfigFile  string `envconfig:"CONFIG" yaml:"-"`
	Theme       string `envconfig:"THEME" yaml:"theme"` // "color" or "plain"

	// Projects
	Workspace string `envconfig:"WORKSPACE" yaml:"workspace"`
	DBPath    string `envconfig:"DB_PATH" yaml:"db_path"`

	// Execution
	OutputLimit    int           `envconfig:"OUTPUT_LIMIT" yaml:"output_limit"`
	DefaultTimeout time.Duration `envconfig:"DEFAULT_TIMEOUT" yaml:"default_timeout"`
	BuildTimeout   time.Duration `envconfig:"BUILD_TIMEOUT" yaml:"build_timeout"`
	TestTimeout    time.Duration `envconfig:"TEST_TIMEOUT" yaml:"test_timeout"`
	RunTimeout     time.Duration `envconfig:"RUN_TIMEOUT" yaml:"run_timeout"`

	// Toolchains
	DefaultKind string `envconfig:"DEFAULT_KIND" yaml:"default_kind"`
	GoBin       string `envconfig:"GO_BIN" yaml:"go_bin"`
	CargoBin    string `envconfig:"CARGO_BIN" yaml:"cargo_bin"`
	PythonBin   string `envconfig:"PYTHON_BIN" yaml:"python_bin"`

	// Version control
	GitBin            string        `envconfig:"GIT_BIN" yaml:"git_bin"`
	VCSTimeout        time.Duration `envconfig:"VCS_TIMEOUT" yaml:"vcs_timeout"`
	VCSNetworkTimeout time.Duration `envconfig:"VCS_NETWORK_TIMEOUT" yaml:"vcs_network_timeout"`
	VCSNetworkRetries int           `envconfig:"VCS_NETWORK_RETRIES" yaml:"vcs_network_retries"`
	DefaultRemote     string        `envconfig:"DEFAULT_REMOTE" yaml:"default_remote"`

	// Self-update
	SelfUpdate SelfUpdate `envconfig:"SELF_UPDATE" yaml:"self_update"`

	// Observability
	MetricsTextfile  string        `envconfig:"METRICS_TEXTFILE" yaml:"metrics_textfile"`
	HistoryRetention time.Duration `envconfig:"HISTORY_RETENTION" yaml:"history_retention"`
}

// SelfUpdate configures the self-update session. Empty paths are derived
// from the running executable.
type SelfUpdate struct {
	SourceDir     string        `envconfig:"SOURCE_DIR" yaml:"source_dir"`
	Package       string        `envconfig:"PACKAGE" yaml:"package"`
	Binary        string        `envconfig:"BINARY" yaml:"binary"`
	Staging       string        `envconfig:"STAGING" yaml:"staging"`
	Backup        string        `envconfig:"BACKUP" yaml:"backup"`
	VerifyArgs    []string      `envconfig:"VERIFY_ARGS" yaml:"verify_args"`
	SkipVerify    bool          `envconfig:"SKIP_VERIFY" yaml:"skip_verify"`
	VerifyTimeout time.Duration `envconfig:"VERIFY_TIMEOUT" yaml:"verify_timeout"`
}

// Load reads the YAML file named by DEVTERM_CONFIG, or the default file when
// it exists, then applies the environment and defaults.
func Load() (*Config, error) {
	path := os.Getenv(Prefix + "_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}

	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(expandHome(path))
		switch {
		case err == nil:
			if err := decode(raw, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
			cfg.ConfigFile = path
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return finish(&cfg)
}

// LoadBytes parses YAML data and then applies the environment and defaults.
func LoadBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return finish(&cfg)
}

func decode(data []byte, cfg *Config) error {
	return yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.Theme == "" {
		cfg.Theme = "color"
	}
	if cfg.Workspace == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Workspace = filepath.Join(home, "Projects")
		}
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(configDir(), "devterm.db")
	}
	if cfg.OutputLimit == 0 {
		cfg.OutputLimit = 1 << 20
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 2 * time.Minute
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = 10 * time.Minute
	}
	if cfg.TestTimeout == 0 {
		cfg.TestTimeout = 10 * time.Minute
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if cfg.DefaultKind == "" {
		cfg.DefaultKind = string(manifest.KindGo)
	}
	if cfg.GoBin == "" {
		cfg.GoBin = "go"
	}
	if cfg.CargoBin == "" {
		cfg.CargoBin = "cargo"
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.GitBin == "" {
		cfg.GitBin = "git"
	}
	if cfg.VCSTimeout == 0 {
		cfg.VCSTimeout = time.Minute
	}
	if cfg.VCSNetworkTimeout == 0 {
		cfg.VCSNetworkTimeout = 5 * time.Minute
	}
	if cfg.VCSNetworkRetries == 0 {
		cfg.VCSNetworkRetries = 1
	}
	if cfg.DefaultRemote == "" {
		cfg.DefaultRemote = "origin"
	}
	if cfg.SelfUpdate.Package == "" {
		cfg.SelfUpdate.Package = "./cmd/devterm"
	}
	if len(cfg.SelfUpdate.VerifyArgs) == 0 {
		cfg.SelfUpdate.VerifyArgs = []string{"version"}
	}
	if cfg.SelfUpdate.VerifyTimeout == 0 {
		cfg.SelfUpdate.VerifyTimeout = 30 * time.Second
	}
	if cfg.HistoryRetention == 0 {
		cfg.HistoryRetention = 30 * 24 * time.Hour
	}

	cfg.Workspace = absPath(expandHome(cfg.Workspace))
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.MetricsTextfile = expandHome(cfg.MetricsTextfile)
	cfg.SelfUpdate.SourceDir = expandHome(cfg.SelfUpdate.SourceDir)
	cfg.SelfUpdate.Binary = expandHome(cfg.SelfUpdate.Binary)
	cfg.SelfUpdate.Staging = expandHome(cfg.SelfUpdate.Staging)
	cfg.SelfUpdate.Backup = expandHome(cfg.SelfUpdate.Backup)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", perrors.ErrInvalidInput, c.LogLevel)
	}
	if _, err := manifest.ParseKind(c.DefaultKind); err != nil {
		return fmt.Errorf("default kind: %w", err)
	}
	if c.OutputLimit < 0 {
		return fmt.Errorf("%w: output limit must not be negative, got %d", perrors.ErrInvalidInput, c.OutputLimit)
	}
	if c.VCSNetworkRetries < 1 {
		return fmt.Errorf("%w: vcs network retries must be at least 1, got %d", perrors.ErrInvalidInput, c.VCSNetworkRetries)
	}
	if c.Theme != "color" && c.Theme != "plain" {
		return fmt.Errorf("%w: theme %q", perrors.ErrInvalidInput, c.Theme)
	}
	for name, d := range map[string]time.Duration{
		"default": c.DefaultTimeout, "build": c.BuildTimeout, "test": c.TestTimeout,
		"run": c.RunTimeout, "vcs": c.VCSTimeout, "vcs network": c.VCSNetworkTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s timeout %s", perrors.ErrInvalidInput, name, d)
		}
	}
	return nil
}

// IsDevelopment reports whether logs should go to a console writer.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// DefaultConfigFile is the YAML file read when DEVTERM_CONFIG is unset.
func DefaultConfigFile() string {
	return filepath.Join(configDir(), "devterm.yaml")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".devterm"
	}
	return filepath.Join(dir, "devterm")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// absPath anchors a relative path at the working directory so project roots
// compare equal however they were spelled.
func absPath(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the environment value. Missing
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}

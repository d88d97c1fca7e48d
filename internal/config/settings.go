package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/retry"
)

// Environment variables consulted by Resolve.
const (
	EnvTool        = "DUCT_GALLERY_TOOL"
	EnvNATSURL     = "DUCT_GALLERY_NATS_URL"
	EnvHistoryDB   = "DUCT_GALLERY_HISTORY_DB"
	EnvMetricsFile = "DUCT_GALLERY_METRICS_FILE"
)

// Defaults for run settings.
const (
	DefaultOutput      = "README.md"
	DefaultLogDir      = "logs"
	DefaultImageDir    = "images"
	DefaultTool        = "con-duct"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultNATSSubject = "ductgallery.runs"
)

// ErrInvalidSettings wraps settings validation failures.
var ErrInvalidSettings = errors.New("invalid settings")

// FileSettings is the optional settings table of a registry file.
type FileSettings struct {
	Output      string        `yaml:"output,omitempty" toml:"output,omitempty"`
	LogDir      string        `yaml:"log_dir,omitempty" toml:"log_dir,omitempty"`
	ImageDir    string        `yaml:"image_dir,omitempty" toml:"image_dir,omitempty"`
	RepoRoot    string        `yaml:"repo_root,omitempty" toml:"repo_root,omitempty"`
	Tool        string        `yaml:"tool,omitempty" toml:"tool,omitempty"`
	HTTPTimeout string        `yaml:"http_timeout,omitempty" toml:"http_timeout,omitempty"`
	Retry       RetrySettings `yaml:"retry,omitempty" toml:"retry,omitempty"`
	HistoryDB   string        `yaml:"history_db,omitempty" toml:"history_db,omitempty"`
	NATSURL     string        `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	NATSSubject string        `yaml:"nats_subject,omitempty" toml:"nats_subject,omitempty"`
	MetricsFile string        `yaml:"metrics_file,omitempty" toml:"metrics_file,omitempty"`
	HTMLOutput  string        `yaml:"html_output,omitempty" toml:"html_output,omitempty"`
}

// RetrySettings configures download retries.
type RetrySettings struct {
	Mode       string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	Initial    string `yaml:"initial,omitempty" toml:"initial,omitempty"`
	Max        string `yaml:"max,omitempty" toml:"max,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
}

// Settings are the resolved parameters of a run.
type Settings struct {
	Output      string
	LogDir      string
	ImageDir    string
	RepoRoot    string
	Tool        string
	HTTPTimeout time.Duration
	Retry       retry.Policy
	HistoryDB   string
	NATSURL     string
	NATSSubject string
	MetricsFile string
	HTMLOutput  string
	Force       bool
	DryRun      bool
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		Output:      DefaultOutput,
		LogDir:      DefaultLogDir,
		ImageDir:    DefaultImageDir,
		Tool:        DefaultTool,
		HTTPTimeout: DefaultHTTPTimeout,
		Retry:       retry.DefaultPolicy(),
		NATSSubject: DefaultNATSSubject,
	}
}

// Overrides are command-line values; empty fields leave lower layers intact.
type Overrides struct {
	Output      string
	LogDir      string
	ImageDir    string
	RepoRoot    string
	Tool        string
	HTTPTimeout time.Duration
	HistoryDB   string
	NATSURL     string
	MetricsFile string
	HTMLOutput  string
	Force       bool
	DryRun      bool
}

// Resolve layers defaults, the registry's settings table, the environment and
// command-line overrides, in increasing precedence.
func Resolve(file FileSettings, ov Overrides) (Settings, error) {
	s := Defaults()

	pick(&s.Output, file.Output)
	pick(&s.LogDir, file.LogDir)
	pick(&s.ImageDir, file.ImageDir)
	pick(&s.RepoRoot, file.RepoRoot)
	pick(&s.Tool, file.Tool)
	pick(&s.HistoryDB, file.HistoryDB)
	pick(&s.NATSURL, file.NATSURL)
	pick(&s.NATSSubject, file.NATSSubject)
	pick(&s.MetricsFile, file.MetricsFile)
	pick(&s.HTMLOutput, file.HTMLOutput)
	if file.HTTPTimeout != "" {
		d, err := time.ParseDuration(file.HTTPTimeout)
		if err != nil {
			return s, fmt.Errorf("%w: http_timeout: %w", ErrInvalidSettings, err)
		}
		s.HTTPTimeout = d
	}
	policy, err := retryPolicy(file.Retry)
	if err != nil {
		return s, err
	}
	s.Retry = policy

	pick(&s.Tool, os.Getenv(EnvTool))
	pick(&s.NATSURL, os.Getenv(EnvNATSURL))
	pick(&s.HistoryDB, os.Getenv(EnvHistoryDB))
	pick(&s.MetricsFile, os.Getenv(EnvMetricsFile))

	pick(&s.Output, ov.Output)
	pick(&s.LogDir, ov.LogDir)
	pick(&s.ImageDir, ov.ImageDir)
	pick(&s.RepoRoot, ov.RepoRoot)
	pick(&s.Tool, ov.Tool)
	pick(&s.HistoryDB, ov.HistoryDB)
	pick(&s.NATSURL, ov.NATSURL)
	pick(&s.MetricsFile, ov.MetricsFile)
	pick(&s.HTMLOutput, ov.HTMLOutput)
	if ov.HTTPTimeout > 0 {
		s.HTTPTimeout = ov.HTTPTimeout
	}
	s.Force = ov.Force
	s.DryRun = ov.DryRun

	return s, s.Validate()
}

// Validate checks resolved settings.
func (s Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Output) == "" {
		problems = append(problems, "output must not be empty")
	}
	if strings.TrimSpace(s.LogDir) == "" {
		problems = append(problems, "log_dir must not be empty")
	}
	if strings.TrimSpace(s.ImageDir) == "" {
		problems = append(problems, "image_dir must not be empty")
	}
	if strings.TrimSpace(s.Tool) == "" {
		problems = append(problems, "tool must not be empty")
	}
	if s.HTTPTimeout <= 0 {
		problems = append(problems, "http_timeout must be positive")
	}
	if err := s.Retry.Validate(); err != nil {
		problems = append(problems, "retry: "+err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

func retryPolicy(r RetrySettings) (retry.Policy, error) {
	if r.Mode != "" && retry.NormalizeMode(r.Mode) == "" {
		return retry.Policy{}, fmt.Errorf("%w: retry.mode %q (want fixed, linear or exponential)", ErrInvalidSettings, r.Mode)
	}
	if r.MaxRetries < 0 {
		return retry.Policy{}, fmt.Errorf("%w: retry.max_retries cannot be negative", ErrInvalidSettings)
	}
	var initial, maxDelay time.Duration
	var err error
	if r.Initial != "" {
		if initial, err = time.ParseDuration(r.Initial); err != nil {
			return retry.Policy{}, fmt.Errorf("%w: retry.initial: %w", ErrInvalidSettings, err)
		}
	}
	if r.Max != "" {
		if maxDelay, err = time.ParseDuration(r.Max); err != nil {
			return retry.Policy{}, fmt.Errorf("%w: retry.max: %w", ErrInvalidSettings, err)
		}
	}
	return retry.NewPolicy(retry.BackoffMode(r.Mode), initial, maxDelay, r.MaxRetries), nil
}

func pick(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

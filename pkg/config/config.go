package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/riskscope/riskscope/pkg/poller"
	"github.com/riskscope/riskscope/pkg/remote"
	"github.com/riskscope/riskscope/pkg/retry"
	"github.com/riskscope/riskscope/pkg/timeout"
)

// Config is the client configuration
type Config struct {
	Backend  BackendConfig `json:"backend" yaml:"backend"`
	Poll     PollConfig    `json:"poll" yaml:"poll"`
	Timeouts TimeoutConfig `json:"timeouts" yaml:"timeouts"`
	Export   ExportConfig  `json:"export" yaml:"export"`
	Archive  ArchiveConfig `json:"archive" yaml:"archive"`
	Log      LogConfig     `json:"log" yaml:"log"`
}

// BackendConfig locates the compute service
type BackendConfig struct {
	BaseURL   string           `json:"base_url" yaml:"base_url"`
	Token     string           `json:"token,omitempty" yaml:"token,omitempty"`
	Endpoints remote.Endpoints `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// PollConfig controls task status polling. Zero MaxAttempts and Timeout mean unbounded.
type PollConfig struct {
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Backoff     string        `json:"backoff,omitempty" yaml:"backoff,omitempty"` // fixed, exponential
	MaxInterval time.Duration `json:"max_interval,omitempty" yaml:"max_interval,omitempty"`
	Jitter      float64       `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	MaxAttempts int           `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TimeoutConfig bounds single requests
type TimeoutConfig struct {
	Submit time.Duration `json:"submit,omitempty" yaml:"submit,omitempty"`
	Poll   time.Duration `json:"poll,omitempty" yaml:"poll,omitempty"`
	Export time.Duration `json:"export,omitempty" yaml:"export,omitempty"`
}

// ExportConfig says where downloads go
type ExportConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// ArchiveConfig enables the outcome archive
type ArchiveConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	Project           string `json:"project,omitempty" yaml:"project,omitempty"`
	Collection        string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Topic             string `json:"topic,omitempty" yaml:"topic,omitempty"`
	FirestoreEmulator string `json:"firestore_emulator,omitempty" yaml:"firestore_emulator,omitempty"`
	PubSubEmulator    string `json:"pubsub_emulator,omitempty" yaml:"pubsub_emulator,omitempty"`
}

// LogConfig sets the log level
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000",
			Endpoints: remote.DefaultEndpoints,
		},
		Poll: PollConfig{
			Interval: poller.DefaultInterval,
			Backoff:  "fixed",
		},
		Timeouts: TimeoutConfig{
			Submit: timeout.OperationTimeouts[timeout.OpSubmit],
			Poll:   timeout.OperationTimeouts[timeout.OpPoll],
			Export: timeout.OperationTimeouts[timeout.OpExport],
		},
		Export: ExportConfig{Dir: "."},
		Archive: ArchiveConfig{
			Collection: "riskscope_outcomes",
			Topic:      "riskscope-outcomes",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty) and
// RISKSCOPE_* overrides, in that order, then validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs ValidationErrors
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("%s: invalid duration %q", key, v)})
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("%s: invalid integer %q", key, v)})
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("%s: invalid boolean %q", key, v)})
				return
			}
			*dst = b
		}
	}

	str("RISKSCOPE_BASE_URL", &c.Backend.BaseURL)
	str("RISKSCOPE_TOKEN", &c.Backend.Token)
	dur("RISKSCOPE_POLL_INTERVAL", &c.Poll.Interval)
	str("RISKSCOPE_POLL_BACKOFF", &c.Poll.Backoff)
	num("RISKSCOPE_POLL_MAX_ATTEMPTS", &c.Poll.MaxAttempts)
	dur("RISKSCOPE_POLL_TIMEOUT", &c.Poll.Timeout)
	str("RISKSCOPE_EXPORT_DIR", &c.Export.Dir)
	flag("RISKSCOPE_ARCHIVE_ENABLED", &c.Archive.Enabled)
	str("GOOGLE_CLOUD_PROJECT", &c.Archive.Project)
	str("RISKSCOPE_ARCHIVE_PROJECT", &c.Archive.Project)
	str("RISKSCOPE_LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// TimeoutManager builds the per-operation timeouts
func (c *Config) TimeoutManager() *timeout.Manager {
	tm := timeout.NewManager(0)
	tm.LoadConfig(timeout.Config{Operations: map[string]time.Duration{
		timeout.OpSubmit:       c.Timeouts.Submit,
		timeout.OpPoll:         c.Timeouts.Poll,
		timeout.OpExport:       c.Timeouts.Export,
		timeout.OpPollSequence: c.Poll.Timeout,
	}})
	return tm
}

// PollPolicy builds the poll schedule
func (c *Config) PollPolicy() (poller.Policy, error) {
	s, err := retry.New(c.Poll.Backoff, c.Poll.Interval, c.Poll.MaxInterval, c.Poll.Jitter)
	if err != nil {
		return poller.Policy{}, err
	}
	return poller.Policy{Strategy: s, MaxAttempts: c.Poll.MaxAttempts}, nil
}

// ApplyEmulators exports emulator hosts so the GCP clients pick them up
func (c *Config) ApplyEmulators() {
	if c.Archive.FirestoreEmulator != "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", c.Archive.FirestoreEmulator)
	}
	if c.Archive.PubSubEmulator != "" {
		os.Setenv("PUBSUB_EMULATOR_HOST", c.Archive.PubSubEmulator)
	}
}

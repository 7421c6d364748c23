package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskscope/riskscope/pkg/retry"
	"github.com/riskscope/riskscope/pkg/timeout"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.PollPolicy()
	require.NoError(t, err)
	assert.Equal(t, &retry.Fixed{Delay: 3 * time.Second}, p.Strategy)
	assert.Zero(t, p.MaxAttempts)
	assert.Zero(t, cfg.TimeoutManager().GetTimeout(timeout.OpPollSequence))
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  base_url: https://risk.example.com
  endpoints:
    simulation_pdf: /simulation_pdf
poll:
  interval: 500ms
  backoff: exponential
  max_interval: 10s
  max_attempts: 40
timeouts:
  export: 90s
`), 0o644))

	t.Setenv("RISKSCOPE_TOKEN", "tok")
	t.Setenv("RISKSCOPE_POLL_TIMEOUT", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://risk.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "tok", cfg.Backend.Token)
	assert.Equal(t, "/simulation_pdf", cfg.Backend.Endpoints.SimulationPDF)
	assert.Equal(t, "/scenarios", cfg.Backend.Endpoints.Scenarios)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)

	tm := cfg.TimeoutManager()
	assert.Equal(t, 2*time.Minute, tm.GetTimeout(timeout.OpPollSequence))
	assert.Equal(t, 90*time.Second, tm.GetTimeout(timeout.OpExport))

	p, err := cfg.PollPolicy()
	require.NoError(t, err)
	assert.Equal(t, 40, p.MaxAttempts)
	assert.IsType(t, &retry.ExponentialBackoff{}, p.Strategy)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "localhost:5000"
	cfg.Backend.Endpoints.CSV = "generate_csv"
	cfg.Poll.Interval = 0
	cfg.Poll.Backoff = "linear"
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	errs, ok := err.(ValidationErrors)
	require.True(t, ok)

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"backend.base_url", "backend.endpoints.csv", "poll.interval", "poll.backoff", "archive.project"} {
		assert.True(t, fields[f], "missing error for %s", f)
	}
	assert.Contains(t, err.Error(), "configuration error(s)")
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"RISKSCOPE_POLL_INTERVAL":     "soon",
		"RISKSCOPE_POLL_MAX_ATTEMPTS": "many",
		"RISKSCOPE_ARCHIVE_ENABLED":   "yes please",
	}
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Len(t, err.(ValidationErrors), 3)
}

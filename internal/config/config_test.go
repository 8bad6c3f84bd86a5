package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/schedule"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "overdue_by_date", cfg.DueRule)
	assert.Equal(t, 12, cfg.MaxMonths)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RR_TEST_MARKER=from-file\nLEASE_SELECTION=first_match\n"), 0o600))
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEASE_SELECTION", "most_recent")
	t.Cleanup(func() { os.Unsetenv("RR_TEST_MARKER") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "most_recent", cfg.LeaseSelection)
	assert.Equal(t, "from-file", os.Getenv("RR_TEST_MARKER"))
}

func TestLoad_BadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	_, err := Load()
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := parsePolicy("p.cue", []byte(`
policy: {
	dueRule:        "metadata_due_date"
	maxMonths:      24
	leaseSelection: "first_match"
}
`))
	require.NoError(t, err)
	assert.Equal(t, Policy{DueRule: "metadata_due_date", MaxMonths: 24, LeaseSelection: "first_match"}, p)
}

func TestParsePolicy_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown rule":  `policy: dueRule: "whenever"`,
		"month cap":     `policy: maxMonths: 0`,
		"unknown field": `policy: prorate: true`,
		"syntax":        `policy: {`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parsePolicy("p.cue", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestResolve_FileOverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.cue")
	require.NoError(t, os.WriteFile(path, []byte(`policy: {dueRule: "metadata_due_date", timezone: "America/New_York"}`), 0o600))

	cfg := &Config{DueRule: "overdue_by_date", MaxMonths: 6, LeaseSelection: "first_match", Timezone: "UTC", PolicyFile: path}
	r, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, schedule.Policy{DueRule: schedule.DueRulePaymentDueDate, MaxMonths: 6}, r.Schedule)
	assert.Equal(t, occupancy.SelectFirstMatch, r.Selection)
	assert.Equal(t, "America/New_York", r.Location.String())
}

func TestResolve_InvalidEnvironmentRule(t *testing.T) {
	cfg := &Config{DueRule: "sometimes", Timezone: "UTC"}
	_, err := cfg.Resolve()
	assert.Error(t, err)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

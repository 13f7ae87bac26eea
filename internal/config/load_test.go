package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.VCenter = VCenterConfig{Endpoint: "vc.example.com", Username: "admin", Password: "secret"}
	cfg.Library.Name = "packer"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1, cfg.Retention.Keep)
	assert.False(t, cfg.Retention.DryRun)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "cl-retention", cfg.Metrics.Job)
	assert.Equal(t, "auto", cfg.ConfigReload.Method)
}

func TestLoadFileWithPlaceholders(t *testing.T) {
	t.Setenv("TEST_VC_PASSWORD", "from-env")
	for _, k := range []string{EnvEndpoint, EnvUsername, EnvPassword, EnvLibrary, EnvKeep, EnvDryRun, EnvDebug, EnvSchedule, EnvInsecure, EnvPushgateway} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vcenter:
  endpoint: vc.example.com
  username: administrator@vsphere.local
  password: $(TEST_VC_PASSWORD)
  timeout: 45s
library:
  name: packer-templates
retention:
  keep: 3
  dryRun: true
schedule:
  enabled: true
  cron: "@daily"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "vc.example.com", cfg.VCenter.Endpoint)
	assert.Equal(t, "from-env", cfg.VCenter.Password)
	assert.Equal(t, 45*time.Second, cfg.VCenter.Timeout)
	assert.Equal(t, "packer-templates", cfg.Library.Name)
	assert.Equal(t, 3, cfg.Retention.Keep)
	assert.True(t, cfg.Retention.DryRun)
	assert.Equal(t, "@daily", cfg.Schedule.Cron)
	// untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.ConfigReload.PollInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestParseInvalidYAML(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("retention: [not, a, map"), &cfg)
	assert.ErrorContains(t, err, "unmarshalling yaml")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		EnvEndpoint:    "vc01",
		EnvUsername:    "svc-packer",
		EnvPassword:    "pw",
		EnvLibrary:     "templates",
		EnvInsecure:    "true",
		EnvDryRun:      "True",
		EnvKeep:        "2",
		EnvDebug:       "true",
		EnvSchedule:    "0 3 * * *",
		EnvPushgateway: "http://pushgw:9091",
	}))
	require.NoError(t, err)

	assert.Equal(t, "vc01", cfg.VCenter.Endpoint)
	assert.Equal(t, "svc-packer", cfg.VCenter.Username)
	assert.Equal(t, "pw", cfg.VCenter.Password)
	assert.Equal(t, "templates", cfg.Library.Name)
	assert.True(t, cfg.VCenter.Insecure)
	assert.True(t, cfg.Retention.DryRun)
	assert.Equal(t, 2, cfg.Retention.Keep)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "http://pushgw:9091", cfg.Metrics.Pushgateway)
}

func TestApplyEnvEmptyValuesKeepExisting(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, ApplyEnv(&cfg, envMap(map[string]string{EnvEndpoint: "", EnvKeep: ""})))
	assert.Equal(t, "vc.example.com", cfg.VCenter.Endpoint)
	assert.Equal(t, 1, cfg.Retention.Keep)
}

func TestApplyEnvInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"keep":     {EnvKeep: "one"},
		"dry run":  {EnvDryRun: "maybe"},
		"insecure": {EnvInsecure: "yes please"},
		"debug":    {EnvDebug: "loud"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, ApplyEnv(&cfg, envMap(env)))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"keep zero is allowed", func(c *Config) { c.Retention.Keep = 0 }, ""},
		{"missing credentials", func(c *Config) { c.VCenter.Username = ""; c.VCenter.Password = "" }, "vcenter.username, vcenter.password"},
		{"missing library", func(c *Config) { c.Library.Name = "" }, "library.name"},
		{"negative keep", func(c *Config) { c.Retention.Keep = -1 }, "must not be negative"},
		{"negative timeout", func(c *Config) { c.VCenter.Timeout = -time.Second }, "vcenter.timeout"},
		{"schedule without cron", func(c *Config) { c.Schedule.Enabled = true }, "schedule.cron is required"},
		{"bad cron", func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"cron ignored when disabled", func(c *Config) { c.Schedule.Cron = "every day" }, ""},
		{"bad reload method", func(c *Config) { c.ConfigReload.Method = "inotify" }, "unknown method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

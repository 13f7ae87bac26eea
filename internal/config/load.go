package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables understood by the cleanup, named after the Packer
// variables the template builds already use.
const (
	EnvEndpoint    = "PKR_VAR_vsphere_endpoint"
	EnvUsername    = "PKR_VAR_vsphere_username"
	EnvPassword    = "PKR_VAR_vsphere_password"
	EnvLibrary     = "PKR_VAR_vsphere_content_library"
	EnvInsecure    = "PKR_VAR_vsphere_insecure_connection"
	EnvDryRun      = "CLEANUP_SCRIPT_DRY_RUN"
	EnvKeep        = "CLEANUP_SCRIPT_TEMPLATES_TO_KEEP"
	EnvDebug       = "CLEANUP_SCRIPT_DEBUG"
	EnvSchedule    = "CLEANUP_SCRIPT_SCHEDULE"
	EnvPushgateway = "CLEANUP_SCRIPT_PUSHGATEWAY"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "config.yaml"

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment. An empty path skips the file. A .env file in the
// working directory is loaded first without overriding the real
// environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse expands $(ENV_VAR) placeholders in data and decodes it over cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("unmarshalling yaml: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the variables lookup reports as set.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", key, v)
		}
		*dst = b
		return nil
	}

	str(EnvEndpoint, &cfg.VCenter.Endpoint)
	str(EnvUsername, &cfg.VCenter.Username)
	str(EnvPassword, &cfg.VCenter.Password)
	str(EnvLibrary, &cfg.Library.Name)
	str(EnvPushgateway, &cfg.Metrics.Pushgateway)

	if err := boolean(EnvInsecure, &cfg.VCenter.Insecure); err != nil {
		return err
	}
	if err := boolean(EnvDryRun, &cfg.Retention.DryRun); err != nil {
		return err
	}

	var debug bool
	if err := boolean(EnvDebug, &debug); err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	if v, ok := lookup(EnvKeep); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvKeep, v)
		}
		cfg.Retention.Keep = n
	}

	if v, ok := lookup(EnvSchedule); ok && v != "" {
		cfg.Schedule.Cron = v
		cfg.Schedule.Enabled = true
	}
	return nil
}

// Validate reports the first setting that prevents a run.
func (c *Config) Validate() error {
	var missing []string
	if c.VCenter.Endpoint == "" {
		missing = append(missing, "vcenter.endpoint")
	}
	if c.VCenter.Username == "" {
		missing = append(missing, "vcenter.username")
	}
	if c.VCenter.Password == "" {
		missing = append(missing, "vcenter.password")
	}
	if c.Library.Name == "" {
		missing = append(missing, "library.name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Retention.Keep < 0 {
		return fmt.Errorf("retention.keep must not be negative, got %d", c.Retention.Keep)
	}
	if c.VCenter.Timeout < 0 {
		return errors.New("vcenter.timeout must not be negative")
	}

	if c.Schedule.Enabled {
		if c.Schedule.Cron == "" {
			return errors.New("schedule.cron is required when the schedule is enabled")
		}
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}

	switch c.ConfigReload.Method {
	case "", "auto", "poll", "fsnotify":
	default:
		return fmt.Errorf("configReload.method: unknown method %q", c.ConfigReload.Method)
	}
	return nil
}

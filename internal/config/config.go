package config

import "time"

type Config struct {
	VCenter      VCenterConfig   `yaml:"vcenter"`
	Library      LibraryConfig   `yaml:"library"`
	Retention    RetentionConfig `yaml:"retention"`
	Schedule     ScheduleConfig  `yaml:"schedule"`
	Logging      LoggingConfig   `yaml:"logging"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	ConfigReload ReloadConfig    `yaml:"configReload"`
}

type VCenterConfig struct {
	Endpoint string        `yaml:"endpoint"` // hostname, optionally with :port
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Insecure bool          `yaml:"insecure"` // accept self-signed certificates
	Timeout  time.Duration `yaml:"timeout"`  // 0 = no client timeout
}

type LibraryConfig struct {
	Name string `yaml:"name"`
}

type RetentionConfig struct {
	Keep   int  `yaml:"keep"` // newest builds kept per template name
	DryRun bool `yaml:"dryRun"`
}

type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`   // e.g. "0 3 * * *" or "@daily"
	RunNow  bool   `yaml:"runNow"` // run once immediately on start
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "info", "debug", etc.
	Format string `yaml:"format"` // "console", "json"
}

type MetricsConfig struct {
	Pushgateway string `yaml:"pushgateway"` // empty disables pushing
	Job         string `yaml:"job"`
}

type ReloadConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Method       string        `yaml:"method"` // "auto", "poll", "fsnotify"
	PollInterval time.Duration `yaml:"pollInterval"`
	Debounce     time.Duration `yaml:"debounce"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Retention: RetentionConfig{Keep: 1},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Metrics:   MetricsConfig{Job: "cl-retention"},
		ConfigReload: ReloadConfig{
			Method:       "auto",
			PollInterval: 5 * time.Second,
			Debounce:     500 * time.Millisecond,
		},
	}
}

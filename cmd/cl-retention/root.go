package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/metrics"
	"github.com/raoulx24/cl-retention/internal/retention"
	"github.com/raoulx24/cl-retention/internal/vcenter"
	"github.com/raoulx24/cl-retention/internal/worker"
)

type options struct {
	configPath  string
	endpoint    string
	username    string
	library     string
	keep        int
	dryRun      bool
	insecure    bool
	debug       bool
	schedule    string
	runNow      bool
	pushgateway string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "cl-retention",
		Short: "Delete old template builds from a vSphere content library",
		Long: `cl-retention keeps the newest builds of every template in a vSphere
content library and deletes the rest.

Builds are grouped by the name in front of the build stamp, so
"Ubuntu_24.04-Template (202405260033)" belongs to "Ubuntu 24.04-Template".
The password is read from the configuration file or from
PKR_VAR_vsphere_password, never from a flag.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.Flags(), opts, cmd.OutOrStdout())
		},
	}

	bindFlags(cmd.Flags(), opts)
	return cmd
}

func bindFlags(f *pflag.FlagSet, opts *options) {
	f.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default "+config.DefaultPath+" if present)")
	f.StringVar(&opts.endpoint, "endpoint", "", "vCenter host name or https URL")
	f.StringVar(&opts.username, "username", "", "vCenter user")
	f.StringVar(&opts.library, "library", "", "content library name")
	f.IntVar(&opts.keep, "keep", 1, "builds to keep per template")
	f.BoolVar(&opts.dryRun, "dry-run", false, "log what would be deleted without deleting")
	f.BoolVar(&opts.insecure, "insecure", false, "accept self-signed vCenter certificates")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	f.StringVar(&opts.schedule, "schedule", "", "cron expression; runs as a daemon when set")
	f.BoolVar(&opts.runNow, "run-now", false, "with --schedule, run once immediately on start")
	f.StringVar(&opts.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL")
}

// loadConfig resolves the file and applies flags over file and
// environment. The result is not validated.
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, string, error) {
	path := opts.configPath
	if !flags.Changed("config") {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	applyFlags(flags, opts, cfg)
	return cfg, path, nil
}

func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) {
	if flags.Changed("endpoint") {
		cfg.VCenter.Endpoint = opts.endpoint
	}
	if flags.Changed("username") {
		cfg.VCenter.Username = opts.username
	}
	if flags.Changed("library") {
		cfg.Library.Name = opts.library
	}
	if flags.Changed("keep") {
		cfg.Retention.Keep = opts.keep
	}
	if flags.Changed("dry-run") {
		cfg.Retention.DryRun = opts.dryRun
	}
	if flags.Changed("insecure") {
		cfg.VCenter.Insecure = opts.insecure
	}
	if flags.Changed("debug") && opts.debug {
		cfg.Logging.Level = "debug"
	}
	if flags.Changed("schedule") {
		cfg.Schedule.Cron = opts.schedule
		cfg.Schedule.Enabled = opts.schedule != ""
	}
	if flags.Changed("run-now") {
		cfg.Schedule.RunNow = opts.runNow
	}
	if flags.Changed("pushgateway") {
		cfg.Metrics.Pushgateway = opts.pushgateway
	}
}

func run(ctx context.Context, flags *pflag.FlagSet, opts *options, out io.Writer) (err error) {
	cfg, path, err := loadConfig(flags, opts)
	if err != nil {
		return err
	}

	log, err := logging.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, out)
	if err != nil {
		return err
	}
	defer log.Sync()

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected error, aborting", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}
	if path != "" {
		log.Debug("configuration loaded", "file", path)
	}

	if cfg.Schedule.Enabled {
		return runDaemon(ctx, flags, opts, cfg, path, log)
	}

	w, _ := newWorker(cfg, log)
	if _, err := w.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted")
		}
		return err
	}
	return nil
}

func newWorker(cfg *config.Config, log logging.Logger) (*worker.Worker, *retention.Engine) {
	client := vcenter.New(cfg.VCenter, log)
	engine := retention.New(cfg.Retention, log)
	return worker.New(client, engine, *cfg, log, metrics.New()), engine
}

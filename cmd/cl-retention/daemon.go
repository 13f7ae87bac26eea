package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/mailbox"
	"github.com/raoulx24/cl-retention/internal/scheduler"
	"github.com/raoulx24/cl-retention/internal/watcher"
	"github.com/raoulx24/cl-retention/internal/worker"
)

// runDaemon triggers runs on the cron schedule until ctx is cancelled.
// SIGHUP, or a change to the config file when reload is enabled, reloads
// the configuration. A panicking run stops the daemon with an error.
func runDaemon(ctx context.Context, flags *pflag.FlagSet, opts *options, cfg *config.Config, path string, log logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, engine := newWorker(cfg, log)
	mb := mailbox.New[worker.Trigger]()

	sched, err := scheduler.New(cfg.Schedule.Cron, log, mb)
	if err != nil {
		log.Error("invalid schedule", "error", err)
		return err
	}

	var watch *watcher.Watcher
	var mu sync.Mutex
	current := cfg

	reload := func(reason string) {
		mu.Lock()
		defer mu.Unlock()

		next, _, err := loadConfig(flags, opts)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			log.Error("config reload failed, keeping current configuration", "error", err)
			return
		}
		if next.VCenter != current.VCenter {
			log.Warn("vCenter connection settings changed, restart to apply them")
		}
		if !next.Schedule.Enabled {
			log.Warn("schedule cannot be disabled by a reload, keeping it", "schedule", current.Schedule.Cron)
			next.Schedule = current.Schedule
		}
		if err := sched.Reschedule(next.Schedule.Cron); err != nil {
			log.Error("keeping current schedule", "error", err)
			next.Schedule = current.Schedule
		}

		engine.UpdateConfig(next.Retention)
		w.UpdateConfig(*next)
		if watch != nil {
			watch.UpdateConfig(next.ConfigReload)
		}
		current = next
		log.Info("config reloaded", "reason", reason, "keep", next.Retention.Keep, "dryRun", next.Retention.DryRun)
	}

	if cfg.ConfigReload.Enabled && path != "" {
		watch = watcher.New(path, cfg.ConfigReload, log, func() { reload("config file changed") })
	}

	var wg sync.WaitGroup

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reload("SIGHUP")
			}
		}
	}()

	if watch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch.Start(ctx); err != nil {
				log.Error("config watcher stopped", "error", err)
			}
		}()
	}

	loopErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loopErr <- worker.RunLoop(ctx, w, mb)
	}()

	sched.Start()
	if cfg.Schedule.RunNow {
		mb.Put(worker.Trigger{Reason: "startup", At: time.Now()})
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-loopErr:
	}

	log.Info("shutting down")
	cancel()
	sched.Stop()
	mb.Close()
	wg.Wait()
	log.Info("exit complete")
	return runErr
}

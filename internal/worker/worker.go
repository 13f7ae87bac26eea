// Package worker runs the content library cleanup: it logs in, fetches
// the templates, applies retention and deletes what is no longer kept.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/metrics"
	"github.com/raoulx24/cl-retention/internal/retention"
	"github.com/raoulx24/cl-retention/internal/template"
	"github.com/raoulx24/cl-retention/internal/vcenter"
)

// Report summarises one run.
type Report struct {
	RunID      string
	Library    string
	DryRun     bool
	Templates  int // fetched successfully
	Skipped    int // metadata fetch failed
	Candidates int // selected for deletion
	Deleted    int
	Failed     int
	Duration   time.Duration
}

// Worker performs cleanup runs against one vCenter.
type Worker struct {
	mu      sync.RWMutex
	library string
	dryRun  bool
	push    config.MetricsConfig

	api     LibraryAPI
	planner Planner
	log     logging.Logger
	metrics *metrics.Metrics

	newRunID func() string
}

// New creates a worker. m may be nil when metrics are not wanted.
func New(api LibraryAPI, planner Planner, cfg config.Config, log logging.Logger, m *metrics.Metrics) *Worker {
	log.Debug("creating worker")
	if m == nil {
		m = metrics.New()
	}
	return &Worker{
		library:  cfg.Library.Name,
		dryRun:   cfg.Retention.DryRun,
		push:     cfg.Metrics,
		api:      api,
		planner:  planner,
		log:      log,
		metrics:  m,
		newRunID: uuid.NewString,
	}
}

// UpdateConfig hot-reloads the library name, dry-run toggle and metrics target.
func (w *Worker) UpdateConfig(cfg config.Config) {
	w.log.Debug("entering Worker.UpdateConfig()")
	w.mu.Lock()
	w.library = cfg.Library.Name
	w.dryRun = cfg.Retention.DryRun
	w.push = cfg.Metrics
	w.mu.Unlock()
}

// Run performs one cleanup. The session is closed on every return path,
// panics included. Per-item failures are counted in the report and do not
// fail the run.
func (w *Worker) Run(ctx context.Context) (rep *Report, err error) {
	w.mu.RLock()
	library, dryRun, push := w.library, w.dryRun, w.push
	w.mu.RUnlock()

	rep = &Report{RunID: w.newRunID(), Library: library, DryRun: dryRun}
	log := w.log.With("run", rep.RunID)
	start := time.Now()
	completed := false

	log.Info("starting cleanup", "library", library, "keep", w.planner.Keep(), "dryRun", dryRun)

	defer func() {
		rep.Duration = time.Since(start)
		w.metrics.ObserveRun(time.Now(), rep.Duration, completed && err == nil)
		if perr := w.metrics.Push(context.WithoutCancel(ctx), push.Pushgateway, push.Job); perr != nil {
			log.Warn("could not push metrics", "error", perr)
		}
	}()
	defer w.logout(ctx, log)

	if err := w.api.Login(ctx); err != nil {
		if vcenter.IsUnauthorized(err) {
			log.Error("authentication failed, credentials rejected by vCenter", "error", err)
		} else {
			log.Error("authentication failed", "error", err)
		}
		return rep, fmt.Errorf("login: %w", err)
	}

	templates, err := w.fetchTemplates(ctx, log, library, rep)
	if err != nil {
		return rep, err
	}
	if len(templates) == 0 {
		log.Info("no templates found in content library, nothing to do", "library", library)
		completed = true
		return rep, nil
	}

	plan, err := w.planner.Plan(templates)
	if err != nil {
		log.Error("could not determine templates to delete", "error", err)
		return rep, fmt.Errorf("planning: %w", err)
	}

	if err := w.apply(ctx, log, plan, dryRun, rep); err != nil {
		return rep, err
	}

	log.Info("cleanup finished",
		"templates", rep.Templates, "skipped", rep.Skipped,
		"candidates", rep.Candidates, "deleted", rep.Deleted, "failed", rep.Failed,
		"dryRun", dryRun)
	completed = true
	return rep, nil
}

// logout closes the session with a context that survives cancellation.
func (w *Worker) logout(ctx context.Context, log logging.Logger) {
	if err := w.api.Logout(context.WithoutCancel(ctx)); err != nil {
		log.Error("logout failed", "error", err)
	}
}

func (w *Worker) fetchTemplates(ctx context.Context, log logging.Logger, library string, rep *Report) ([]template.Template, error) {
	log.Info("searching for content library", "library", library)
	libraryID, err := w.api.FindLibraryID(ctx, library)
	if err != nil {
		log.Error("could not resolve content library", "library", library, "error", err)
		return nil, fmt.Errorf("resolving library: %w", err)
	}
	log.Info("content library resolved", "library", library, "id", libraryID)

	items, err := w.api.ListItems(ctx, libraryID)
	if err != nil {
		log.Error("could not retrieve content library items", "id", libraryID, "error", err)
		return nil, fmt.Errorf("listing items: %w", err)
	}
	log.Debug("found items in content library", "count", len(items))

	templates := make([]template.Template, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := w.api.GetItem(ctx, item)
		if err != nil {
			if vcenter.IsNotFound(err) {
				log.Warn("library item disappeared, skipping", "item", item)
			} else {
				log.Warn("could not retrieve metadata, skipping item", "item", item, "error", err)
			}
			rep.Skipped++
			continue
		}
		log.Debug("library item", "item", item, "name", t.Name, "created", t.CreationTime)
		templates = append(templates, t)
	}

	rep.Templates = len(templates)
	w.metrics.Templates.Set(float64(len(templates)))
	w.metrics.Skipped.Add(float64(rep.Skipped))
	return templates, nil
}

func (w *Worker) apply(ctx context.Context, log logging.Logger, plan *retention.Plan, dryRun bool, rep *Report) error {
	for _, grp := range plan.Kept {
		for _, t := range grp.Templates {
			log.Info("keeping template", "template", grp.Name, "name", t.Name, "id", t.ID)
		}
	}

	for _, grp := range plan.Delete {
		for _, t := range grp.Templates {
			rep.Candidates++
			w.metrics.Candidates.Inc()

			build, _ := template.BuildStamp(t)
			fields := []any{
				"template", grp.Name,
				"build", build,
				"name", t.Name,
				"id", t.ID,
				"created", t.CreationTime.Format(time.RFC3339),
				"size", humanize.Bytes(uint64(max(t.Size, 0))),
			}
			if dryRun {
				log.Info("dry run, would delete template", fields...)
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := w.api.DeleteItem(ctx, t.ID); err != nil {
				rep.Failed++
				w.metrics.DeleteFailures.WithLabelValues(grp.Name).Inc()
				log.Error("failed to delete template", append(fields, "error", err)...)
				continue
			}
			rep.Deleted++
			w.metrics.Deleted.WithLabelValues(grp.Name).Inc()
			log.Info("deleted template", fields...)
		}
	}
	return nil
}

package retention

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/template"
)

// ErrNegativeKeep is returned when asked to keep fewer than zero builds.
var ErrNegativeKeep = errors.New("retention: keep must not be negative")

// Group holds the builds sharing one base name.
type Group struct {
	Name      string
	Templates []template.Template
}

// Groups keeps groups in the order their base names were first seen.
type Groups []Group

// Get returns the group with the given base name.
func (g Groups) Get(name string) (Group, bool) {
	for _, grp := range g {
		if grp.Name == name {
			return grp, true
		}
	}
	return Group{}, false
}

// Len counts the templates across all groups.
func (g Groups) Len() int {
	n := 0
	for _, grp := range g {
		n += len(grp.Templates)
	}
	return n
}

// Plan is the outcome of applying the keep count to one set of templates.
type Plan struct {
	Keep   int
	Kept   Groups
	Delete Groups
}

// GroupByBaseName buckets templates by template.BaseName. A single
// malformed name fails the whole grouping.
func GroupByBaseName(templates []template.Template) (Groups, error) {
	var groups Groups
	index := map[string]int{}

	for _, t := range templates {
		name, err := template.BaseName(t)
		if err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Templates = append(groups[i].Templates, t)
	}
	return groups, nil
}

// SortByRecency orders every group newest → oldest by creation time.
// Builds created at the same instant keep their relative order.
func SortByRecency(groups Groups) {
	for _, grp := range groups {
		ts := grp.Templates
		sort.SliceStable(ts, func(i, j int) bool {
			return ts[i].CreationTime.After(ts[j].CreationTime)
		})
	}
}

// Convert groups templates by base name and sorts each group newest first.
func Convert(templates []template.Template) (Groups, error) {
	groups, err := GroupByBaseName(templates)
	if err != nil {
		return nil, err
	}
	SortByRecency(groups)
	return groups, nil
}

// SelectForDeletion drops the first keep entries of every sorted group and
// returns what is left, oldest tail in newest-first order. groups is not
// modified.
func SelectForDeletion(groups Groups, keep int) (Groups, error) {
	if keep < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeKeep, keep)
	}
	out := make(Groups, 0, len(groups))
	for _, grp := range groups {
		var del []template.Template
		if len(grp.Templates) > keep {
			del = append(del, grp.Templates[keep:]...)
		}
		out = append(out, Group{Name: grp.Name, Templates: del})
	}
	return out, nil
}

// selectKept is the complement of SelectForDeletion.
func selectKept(groups Groups, keep int) Groups {
	out := make(Groups, 0, len(groups))
	for _, grp := range groups {
		n := min(keep, len(grp.Templates))
		out = append(out, Group{Name: grp.Name, Templates: append([]template.Template(nil), grp.Templates[:n]...)})
	}
	return out
}

type Engine struct {
	mu   sync.RWMutex
	keep int
	log  logging.Logger
}

func New(cfg config.RetentionConfig, log logging.Logger) *Engine {
	return &Engine{
		keep: cfg.Keep,
		log:  log,
	}
}

// UpdateConfig hot-reloads the keep count.
func (e *Engine) UpdateConfig(cfg config.RetentionConfig) {
	e.mu.Lock()
	e.keep = cfg.Keep
	e.mu.Unlock()
}

// Keep returns the number of builds kept per template name.
func (e *Engine) Keep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.keep
}

// Plan splits templates into the builds to keep and the builds to delete.
func (e *Engine) Plan(templates []template.Template) (*Plan, error) {
	keep := e.Keep()

	e.log.Debug("converting template data", "templates", len(templates))
	groups, err := Convert(templates)
	if err != nil {
		return nil, fmt.Errorf("grouping templates: %w", err)
	}
	e.log.Debug("merging complete", "unique", len(groups), "total", groups.Len())

	del, err := SelectForDeletion(groups, keep)
	if err != nil {
		return nil, err
	}

	for i, grp := range groups {
		e.log.Debug("retention for template",
			"name", grp.Name, "keep", keep,
			"before", len(grp.Templates), "delete", len(del[i].Templates))
		for _, t := range grp.Templates {
			e.log.Debug("template build",
				"name", t.Name, "id", t.ID,
				"created", t.CreationTime.Format("2006-01-02 15:04:05 MST"))
		}
	}

	return &Plan{
		Keep:   keep,
		Kept:   selectKept(groups, keep),
		Delete: del,
	}, nil
}

package worker

import (
	"context"

	"github.com/raoulx24/cl-retention/internal/retention"
	"github.com/raoulx24/cl-retention/internal/template"
)

// LibraryAPI is the part of the vCenter client a run needs.
type LibraryAPI interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	FindLibraryID(ctx context.Context, name string) (string, error)
	ListItems(ctx context.Context, libraryID string) ([]string, error)
	GetItem(ctx context.Context, itemID string) (template.Template, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// Planner decides which templates to delete; *retention.Engine implements it.
type Planner interface {
	Keep() int
	Plan(templates []template.Template) (*retention.Plan, error)
}

package vcenter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/raoulx24/cl-retention/internal/template"
)

type findSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FindLibraryID resolves a local content library by name. Exactly one
// library must match.
func (c *Client) FindLibraryID(ctx context.Context, name string) (string, error) {
	if c.session == "" {
		return "", ErrNoSession
	}

	var ids []string
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "content/library",
		query:   url.Values{"action": {"find"}},
		payload: findSpec{Name: name, Type: "LOCAL"},
		want:    http.StatusOK,
		out:     &ids,
	})
	if err != nil {
		return "", fmt.Errorf("find library %q: %w", name, err)
	}

	switch len(ids) {
	case 1:
		return ids[0], nil
	case 0:
		c.log.Error("no content library found", "name", name)
		return "", fmt.Errorf("%w: %q", ErrLibraryNotFound, name)
	default:
		c.log.Error("content library name is ambiguous", "name", name, "matches", len(ids))
		return "", fmt.Errorf("%w: %q matches %d libraries", ErrAmbiguousLibrary, name, len(ids))
	}
}

// ListItems returns the item IDs of a library.
func (c *Client) ListItems(ctx context.Context, libraryID string) ([]string, error) {
	if c.session == "" {
		return nil, ErrNoSession
	}
	c.log.Debug("retrieving library items", "library", libraryID)

	var ids []string
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "content/library/item",
		query:  url.Values{"library_id": {libraryID}},
		want:   http.StatusOK,
		out:    &ids,
	})
	if err != nil {
		return nil, fmt.Errorf("list items of library %s: %w", libraryID, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// GetItem fetches the metadata of one library item.
func (c *Client) GetItem(ctx context.Context, itemID string) (template.Template, error) {
	if c.session == "" {
		return template.Template{}, ErrNoSession
	}
	c.log.Debug("retrieving item metadata", "item", itemID)

	var t template.Template
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "content/library/item/" + url.PathEscape(itemID),
		want:   http.StatusOK,
		out:    &t,
	})
	if err != nil {
		return template.Template{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	if t.ID == "" {
		t.ID = itemID
	}
	return t, nil
}

// DeleteItem deletes one library item. It succeeds only on 204 No Content;
// any other response is returned as an *APIError carrying the body.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	if c.session == "" {
		return ErrNoSession
	}
	c.log.Debug("deleting library item", "item", itemID)

	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "content/library/item/" + url.PathEscape(itemID),
		want:   http.StatusNoContent,
	})
	if err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	return nil
}

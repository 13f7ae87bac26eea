// Package template describes content library template items.
package template

import "time"

// Template is the metadata of one content library item, as returned by
// GET /api/content/library/item/{id}.
type Template struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"` // e.g. "Ubuntu_24.04-Template (202405260033)"
	CreationTime       time.Time `json:"creation_time"`
	LastModifiedTime   time.Time `json:"last_modified_time"`
	Description        string    `json:"description,omitempty"`
	Type               string    `json:"type,omitempty"` // "vm-template", "ovf", ...
	Version            string    `json:"version,omitempty"`
	ContentVersion     string    `json:"content_version,omitempty"`
	LibraryID          string    `json:"library_id,omitempty"`
	Size               int64     `json:"size,omitempty"`
	Cached             bool      `json:"cached,omitempty"`
	SecurityCompliance bool      `json:"security_compliance,omitempty"`
	MetadataVersion    string    `json:"metadata_version,omitempty"`
}

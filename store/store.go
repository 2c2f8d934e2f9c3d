// Package store persists manuals, their section records, and detected
// diagram regions, and serves the lookups the query pipeline depends
// on. Two implementations exist behind one interface: a SQLite-backed
// store for production and an in-memory store for tests and ephemeral
// use; the driver is selected at startup.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store: store is closed")
)

// Manual represents one ingested owner's manual.
type Manual struct {
	ID          int64  `json:"id"`
	Year        int    `json:"year"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Uplifted    bool   `json:"uplifted"`
	Active      bool   `json:"active"`
	ContentPath string `json:"content_path,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Section is one contiguous, non-overlapping span of pages describing
// a structural unit of a manual. Immutable after ingestion.
type Section struct {
	ID        int64  `json:"id"`
	ManualID  int64  `json:"manual_id"`
	Name      string `json:"name"`
	FirstPage int    `json:"first_page"`
	Length    int    `json:"length"`
	Level     int    `json:"level"`
}

// LastPage returns the inclusive final page of the section's span.
func (s Section) LastPage() int { return s.FirstPage + s.Length - 1 }

// Image is a percentage-based diagram bounding box on one manual page.
type Image struct {
	ID       int64 `json:"id"`
	ManualID int64 `json:"manual_id"`
	Page     int   `json:"page"`
	X        int   `json:"x"`
	Y        int   `json:"y"`
	W        int   `json:"w"`
	H        int   `json:"h"`
}

// VehicleFilter selects manuals by identity. Nil fields are wildcards;
// make/model comparison is case-insensitive.
type VehicleFilter struct {
	Year  *int
	Make  *string
	Model *string
}

// Store is the reference store the pipeline and ingestion write to and
// read from. Scope, where accepted, restricts lookups to rows owned by
// that caller or unowned (shared) rows; an empty scope means unscoped.
type Store interface {
	InsertManual(ctx context.Context, m Manual) (int64, error)
	UpdateManualContent(ctx context.Context, id int64, path string) error
	InsertSections(ctx context.Context, manualID int64, sections []Section) error
	InsertImages(ctx context.Context, manualID int64, images []Image) error

	// DeactivateManual soft-deletes: the row is never physically removed,
	// preserving reference integrity for historical sections and images.
	DeactivateManual(ctx context.Context, id int64, scope string) error

	GetManual(ctx context.Context, id int64) (*Manual, error)
	ListManuals(ctx context.Context, scope string) ([]Manual, error)
	SectionsByManual(ctx context.Context, manualID int64) ([]Section, error)
	ImageCount(ctx context.Context, manualID int64) (int, error)

	// LookupSections returns all sections of active manuals matching the
	// filter, ordered by manual then first page.
	LookupSections(ctx context.Context, f VehicleFilter, scope string) ([]Section, error)

	// LookupImages returns images of one manual whose page lies in
	// [firstPage, lastPage], ordered by page.
	LookupImages(ctx context.Context, manualID int64, firstPage, lastPage int, scope string) ([]Image, error)

	Close() error
}

// Config selects and configures a store implementation.
type Config struct {
	Driver string // "sqlite" (default) or "memory"
	Path   string // database file path for the sqlite driver
}

// Open creates the store selected by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

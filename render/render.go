// Package render provides the document-rendering contract the engine
// depends on: page counts, page rasters at a chosen DPI, and plain-text
// spans. The production implementation is backed by MuPDF (go-fitz) for
// rasters and ledongthuc/pdf for text.
package render

import (
	"errors"
	"image"
)

// ErrPageOutOfRange is returned when a page index exceeds the
// document's page count.
var ErrPageOutOfRange = errors.New("render: page out of range")

// Document is an open, renderable manual. Page indices are 0-based.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// RenderPage rasterises a full page at the given DPI, scaled
	// against the 72-dpi reference size.
	RenderPage(page, dpi int) (image.Image, error)

	// Close releases the underlying document handle.
	Close() error
}

// Opener opens a document by its content location.
type Opener interface {
	Open(path string) (Document, error)
}

package render

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzOpener opens PDFs through MuPDF.
type FitzOpener struct{}

// NewFitzOpener returns the MuPDF-backed Opener.
func NewFitzOpener() *FitzOpener { return &FitzOpener{} }

func (*FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", path, err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) RenderPage(page, dpi int) (image.Image, error) {
	if page < 0 || page >= d.doc.NumPage() {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, d.doc.NumPage())
	}

	img, err := d.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w", page, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }

package viewer

import (
	"errors"
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

var (
	// ErrNoDocument is returned when a render is requested before a
	// document has been loaded.
	ErrNoDocument = errors.New("viewer: no document loaded")

	// ErrNoPages is returned when the loaded PDF contains no pages.
	ErrNoPages = errors.New("viewer: pdf has no pages")
)

// Document is the viewer's handle to a loaded PDF. Pages are 1-based.
type Document interface {
	// NumPage reports the number of pages in the document.
	NumPage() int

	// PageSize returns the intrinsic size of a page in points.
	PageSize(page int) (w, h float64, err error)

	// Render rasterizes a page at the given scale, where 1.0 maps one
	// point to one pixel.
	Render(page int, scale float64) (image.Image, error)

	Close() error
}

// openDocument opens a PDF from disk. Tests replace it to run without a
// rendering backend.
var openDocument = func(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// SetDocumentOpenerForTest swaps the document opener and returns a restore
// function.
func SetDocumentOpenerForTest(opener func(string) (Document, error)) func() {
	original := openDocument
	openDocument = opener
	return func() {
		openDocument = original
	}
}

// fitzDocument adapts go-fitz to the Document interface. go-fitz pages are
// 0-based; the viewer speaks 1-based throughout.
type fitzDocument struct {
	doc    *fitz.Document
	closed bool
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) PageSize(page int) (float64, float64, error) {
	bound, err := d.doc.Bound(page - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d bounds: %w", page, err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

func (d *fitzDocument) Render(page int, scale float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page-1, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

// Close releases the underlying document. Double-close is tolerated; the
// session disposes its previous document on every load.
func (d *fitzDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

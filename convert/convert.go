// Package convert turns uploaded office and text documents into PDF files
// on disk. Converters register by file extension; the registry picks the
// first one that accepts the input.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no registered converter accepts the
// input's file extension.
var ErrUnsupported = errors.New("convert: unsupported document format")

// ExitError reports an external conversion process that exited nonzero.
// Output carries the collaborator's diagnostic output for the caller's log;
// the conversion is never retried internally.
type ExitError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("convert: %s failed: %v", e.Cmd, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Converter produces a PDF in outDir from the source document and returns
// the produced file's path.
type Converter interface {
	// Accepts reports whether this converter handles the given lowercase
	// file extension (including the leading dot).
	Accepts(ext string) bool

	Convert(ctx context.Context, src, outDir string) (string, error)
}

// Registry selects the appropriate converter for an input document.
type Registry struct {
	converters []Converter
}

func NewRegistry(converters ...Converter) *Registry {
	return &Registry{converters: converters}
}

func (r *Registry) Register(c Converter) {
	r.converters = append(r.converters, c)
}

// Supports reports whether any registered converter accepts the filename's
// extension. Lets the upload boundary reject unsupported formats before
// staging anything.
func (r *Registry) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, c := range r.converters {
		if c.Accepts(ext) {
			return true
		}
	}
	return false
}

// Convert runs the first converter accepting src's extension.
func (r *Registry) Convert(ctx context.Context, src, outDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(src))
	for _, c := range r.converters {
		if c.Accepts(ext) {
			return c.Convert(ctx, src, outDir)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// DefaultRegistry wires the standard converter set: PDF passthrough,
// native markdown rendering, and the office suite subprocess for
// everything else.
func DefaultRegistry(officeBinary string) *Registry {
	return NewRegistry(
		PassthroughConverter{},
		NewMarkdownConverter(),
		NewOfficeConverter(officeBinary),
	)
}

// PassthroughConverter copies documents that already are PDFs into the
// output directory unchanged.
type PassthroughConverter struct{}

func (PassthroughConverter) Accepts(ext string) bool { return ext == ".pdf" }

func (PassthroughConverter) Convert(_ context.Context, src, outDir string) (string, error) {
	dest := filepath.Join(outDir, filepath.Base(src))
	// The upload may already sit in the output directory.
	if same, err := samePath(src, dest); err == nil && same {
		return dest, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("convert: opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("convert: creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("convert: copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("convert: copying %s: %w", src, err)
	}
	return dest, nil
}

func samePath(a, b string) (bool, error) {
	aAbs, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	bAbs, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return aAbs == bAbs, nil
}

// pdfName maps a source document name to its converted PDF name.
func pdfName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

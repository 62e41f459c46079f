package viewer

import (
	"fmt"
	"sync"
)

// NoPage is the sentinel value of the renderer's current page when nothing
// has been rendered yet.
const NoPage = -1

// RenderError wraps a page geometry or raster failure. It is contained: the
// session stays usable and other pages remain navigable.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PageRenderer draws single pages of a Document onto a Surface at a scale
// fitted to the current viewport. It tracks the page it last rendered so
// repeated requests for the same page do no work, and drops requests that
// arrive while a render is in flight.
type PageRenderer struct {
	mu         sync.Mutex
	doc        Document
	surface    *Surface
	vw, vh     float64
	current    int
	busy       bool
	onRendered func(page int)
}

func NewPageRenderer(surface *Surface) *PageRenderer {
	return &PageRenderer{
		surface: surface,
		current: NoPage,
	}
}

// SetDocument points the renderer at a new document and forgets the current
// page. A nil document detaches the renderer.
func (r *PageRenderer) SetDocument(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
	r.current = NoPage
	r.busy = false
}

// SetViewport records the viewport size used to fit subsequent renders.
func (r *PageRenderer) SetViewport(vw, vh float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vw, r.vh = vw, vh
}

// SetOnRendered installs the completion callback invoked after each
// successful render with the 1-based page number.
func (r *PageRenderer) SetOnRendered(fn func(page int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRendered = fn
}

// ResetCurrent clears the rendered-page marker so the next RenderPage call
// for the same page is not suppressed. Callers use this to force a redraw
// after a viewport resize.
func (r *PageRenderer) ResetCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = NoPage
}

// Current reports the page the renderer considers rendered, or NoPage.
func (r *PageRenderer) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// RenderPage draws the given page onto the surface. The call is a silent
// no-op when a render is already in flight or when page matches the current
// rendered page. The current-page marker is set before any work happens so
// a request repeated mid-flight is dropped rather than duplicated. On
// failure the busy flag is cleared, the page is not marked visited by the
// callback, and a failure message is left on the surface.
func (r *PageRenderer) RenderPage(page int) error {
	r.mu.Lock()
	if r.doc == nil {
		r.mu.Unlock()
		return ErrNoDocument
	}
	if r.busy || page == r.current {
		r.mu.Unlock()
		return nil
	}
	r.busy = true
	r.current = page
	doc := r.doc
	vw, vh := r.vw, r.vh
	done := r.onRendered
	r.mu.Unlock()

	w, h, err := doc.PageSize(page)
	if err != nil {
		return r.fail(page, err)
	}

	scale := FitScale(vw, vh, w, h)
	r.surface.Resize(int(w*scale+0.5), int(h*scale+0.5))
	r.surface.Clear()

	img, err := doc.Render(page, scale)
	if err != nil {
		return r.fail(page, err)
	}
	r.surface.Draw(img)

	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()

	if done != nil {
		done(page)
	}
	return nil
}

func (r *PageRenderer) fail(page int, err error) error {
	r.mu.Lock()
	r.busy = false
	// Forget the failed page so a later request for it retries instead of
	// being suppressed as already rendered.
	r.current = NoPage
	r.mu.Unlock()
	r.surface.SetMessage(fmt.Sprintf("Failed to load page %d", page))
	return &RenderError{Page: page, Err: err}
}

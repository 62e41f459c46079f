package viewer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
)

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("viewer: session closed")

	// ErrInvalidURL is returned when LoadPDF is given an empty or
	// malformed document URL.
	ErrInvalidURL = errors.New("viewer: invalid pdf url")
)

// ViewerSession owns one loaded document and everything that hangs off it:
// the visited-page bitmap, the current page, the renderer and its surface,
// and the progress store connection. Construct one session per embedding
// context; nothing is shared between instances.
type ViewerSession struct {
	mu sync.Mutex

	client  *http.Client
	locator func() ProgressStore

	surface  *Surface
	renderer *PageRenderer

	store   ProgressStore
	doc     Document
	tmpPath string

	visited     []bool
	currentPage int
	pageCount   int
	lastLoaded  string
	generation  int
	closed      bool
}

// NewViewerSession creates an idle session. locator resolves the progress
// store once per document load; nil means standalone (no persistence).
func NewViewerSession(locator func() ProgressStore) *ViewerSession {
	if locator == nil {
		locator = func() ProgressStore { return NopStore{} }
	}
	surface := NewSurface()
	return &ViewerSession{
		client:   http.DefaultClient,
		locator:  locator,
		surface:  surface,
		renderer: NewPageRenderer(surface),
		store:    NopStore{},
	}
}

// SetClient replaces the HTTP client used to fetch documents.
func (s *ViewerSession) SetClient(c *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}

// Surface exposes the raster the current page is drawn onto.
func (s *ViewerSession) Surface() *Surface { return s.surface }

// LoadPDF fetches, opens and displays a document, replacing any previously
// loaded one. Prior progress is restored from the progress store when the
// persisted bitmap still matches the page count; otherwise the session
// starts from page 1 with empty progress. On failure the surface shows a
// failure message and the session stays able to accept another load.
func (s *ViewerSession) LoadPDF(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := validatePDFURL(rawURL); err != nil {
		s.surface.Clear()
		s.surface.SetMessage("Failed to load document")
		return err
	}

	// Dispose the previous document before anything else so resources
	// never leak across consecutive loads.
	s.disposeDocumentLocked()
	s.surface.Clear()
	s.resetStateLocked()

	s.store = s.locator()
	if err := s.store.Initialize(); err != nil {
		log.Printf("[viewer] progress store init failed: %v", err)
		s.store = NopStore{}
	}

	path, err := s.fetchDocument(rawURL)
	if err != nil {
		s.surface.SetMessage("Failed to load document")
		return err
	}

	doc, err := openDocument(path)
	if err != nil {
		os.Remove(path)
		s.surface.SetMessage("Failed to load document")
		return fmt.Errorf("viewer: open %s: %w", rawURL, err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		os.Remove(path)
		s.surface.SetMessage("Failed to load document")
		return ErrNoPages
	}

	s.doc = doc
	s.tmpPath = path
	s.pageCount = doc.NumPage()
	s.lastLoaded = rawURL
	s.visited = make([]bool, s.pageCount)
	s.restoreProgressLocked()

	s.generation++
	gen := s.generation
	s.renderer.SetDocument(doc)
	s.renderer.SetOnRendered(func(page int) {
		// A stale callback from a render requested against a replaced
		// document must not touch the new session state.
		if gen != s.generation || s.closed {
			return
		}
		s.recordVisitLocked(page)
	})

	if err := s.renderer.RenderPage(s.currentPage); err != nil {
		log.Printf("[viewer] initial render failed: %v", err)
	}
	return nil
}

// Next advances to the following page. At the last page it is a no-op.
func (s *ViewerSession) Next() error {
	return s.navigate(1)
}

// Prev moves to the preceding page. At page 1 it is a no-op.
func (s *ViewerSession) Prev() error {
	return s.navigate(-1)
}

func (s *ViewerSession) navigate(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.doc == nil {
		return ErrNoDocument
	}
	next := s.currentPage + delta
	if next < 1 || next > s.pageCount {
		return nil
	}
	s.currentPage = next
	if err := s.renderer.RenderPage(next); err != nil {
		log.Printf("[viewer] render page %d failed: %v", next, err)
		return err
	}
	return nil
}

// Resize reacts to a viewport size change by redrawing the current page at
// the new scale. The rendered-page marker is force-cleared first, otherwise
// the renderer would suppress the redraw as a duplicate. There is no
// debounce; rapid resizes simply re-render repeatedly.
func (s *ViewerSession) Resize(vw, vh float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.renderer.SetViewport(vw, vh)
	if s.doc == nil {
		return nil
	}
	s.renderer.ResetCurrent()
	if err := s.renderer.RenderPage(s.currentPage); err != nil {
		log.Printf("[viewer] resize render failed: %v", err)
		return err
	}
	return nil
}

// Close commits outstanding progress, terminates the store connection and
// releases the document. The session accepts no further operations.
func (s *ViewerSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.store.Commit(); err != nil {
		log.Printf("[viewer] final commit failed: %v", err)
	}
	if err := s.store.Terminate(); err != nil {
		log.Printf("[viewer] store terminate failed: %v", err)
	}
	s.disposeDocumentLocked()
	return nil
}

// CurrentPage reports the 1-based current page, or 0 when nothing is loaded.
func (s *ViewerSession) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// PageCount reports the page count of the loaded document.
func (s *ViewerSession) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// Progress returns a copy of the visited-page bitmap.
func (s *ViewerSession) Progress() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.visited))
	copy(out, s.visited)
	return out
}

func (s *ViewerSession) resetStateLocked() {
	s.currentPage = 1
	s.pageCount = 0
	s.visited = nil
	s.lastLoaded = ""
	s.renderer.SetDocument(nil)
}

func (s *ViewerSession) disposeDocumentLocked() {
	if s.doc != nil {
		if err := s.doc.Close(); err != nil {
			log.Printf("[viewer] document close failed: %v", err)
		}
		s.doc = nil
	}
	if s.tmpPath != "" {
		os.Remove(s.tmpPath)
		s.tmpPath = ""
	}
}

// restoreProgressLocked applies persisted progress to a freshly loaded
// document. A bitmap whose length no longer matches the page count decodes
// to all-false; a last-page value outside [1, pageCount] falls back to 1.
func (s *ViewerSession) restoreProgressLocked() {
	s.visited = DecodeProgress(s.store.Get(SuspendDataKey), s.pageCount)
	if last, err := strconv.Atoi(s.store.Get(LessonLocationKey)); err == nil {
		if last >= 1 && last <= s.pageCount {
			s.currentPage = last
		}
	}
}

// recordVisitLocked marks a page visited and persists the updated bitmap
// and page marker. Persistence failures are swallowed: progress simply does
// not survive this session, which never blocks rendering. Called from the
// renderer completion callback, which only runs under the session mutex.
func (s *ViewerSession) recordVisitLocked(page int) {
	if page < 1 || page > len(s.visited) {
		return
	}
	s.visited[page-1] = true
	if err := s.store.Set(SuspendDataKey, EncodeProgress(s.visited)); err != nil {
		log.Printf("[viewer] persist bitmap failed: %v", err)
		return
	}
	if err := s.store.Set(LessonLocationKey, strconv.Itoa(page)); err != nil {
		log.Printf("[viewer] persist page failed: %v", err)
		return
	}
	if err := s.store.Commit(); err != nil {
		log.Printf("[viewer] progress commit failed: %v", err)
	}
}

func (s *ViewerSession) fetchDocument(rawURL string) (string, error) {
	resp, err := s.client.Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("viewer: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("viewer: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "pdfscorm-doc-*.pdf")
	if err != nil {
		return "", fmt.Errorf("viewer: staging document: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("viewer: download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("viewer: staging document: %w", err)
	}
	return tmp.Name(), nil
}

func validatePDFURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

package viewer

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newPDFServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 test"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSessionWithDoc(t *testing.T, doc *fakeDoc, store ProgressStore) *ViewerSession {
	t.Helper()
	restore := SetDocumentOpenerForTest(func(string) (Document, error) {
		return doc, nil
	})
	t.Cleanup(restore)

	var locator func() ProgressStore
	if store != nil {
		locator = func() ProgressStore { return store }
	}
	s := NewViewerSession(locator)
	s.Resize(500, 500)
	return s
}

func TestLoadPDFInvalidURL(t *testing.T) {
	s := NewViewerSession(nil)
	defer s.Close()

	for _, u := range []string{"", "not a url", "ftp://host/doc.pdf", "/relative/doc.pdf"} {
		if err := s.LoadPDF(u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("LoadPDF(%q) = %v, want ErrInvalidURL", u, err)
		}
	}
	if s.Surface().Message() == "" {
		t.Error("no failure message after rejected load")
	}
}

func TestLoadPDFFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewViewerSession(nil)
	defer s.Close()

	if err := s.LoadPDF(srv.URL + "/missing.pdf"); err == nil {
		t.Fatal("LoadPDF with 404 upstream succeeded, want error")
	}

	// The session remains usable for a subsequent load.
	doc := &fakeDoc{pages: 2, w: 612, h: 792}
	restore := SetDocumentOpenerForTest(func(string) (Document, error) { return doc, nil })
	defer restore()
	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("load after failure: %v", err)
	}
	if s.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", s.PageCount())
	}
}

func TestLoadPDFRendersFirstPage(t *testing.T) {
	doc := &fakeDoc{pages: 3, w: 612, h: 792}
	s := newSessionWithDoc(t, doc, nil)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if got := s.CurrentPage(); got != 1 {
		t.Fatalf("CurrentPage = %d, want 1", got)
	}
	if len(doc.renders) != 1 || doc.renders[0] != 1 {
		t.Fatalf("renders = %v, want [1]", doc.renders)
	}
	if got := EncodeProgress(s.Progress()); got != "100" {
		t.Fatalf("progress = %q, want %q", got, "100")
	}
}

func TestNavigationClampsAndPersists(t *testing.T) {
	doc := &fakeDoc{pages: 5, w: 612, h: 792}
	store := NewMemoryStore()
	s := newSessionWithDoc(t, doc, store)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}

	// Prev at page 1 is a no-op.
	if err := s.Prev(); err != nil {
		t.Fatalf("Prev at first page: %v", err)
	}
	if got := s.CurrentPage(); got != 1 {
		t.Fatalf("CurrentPage after boundary Prev = %d, want 1", got)
	}

	// Visit pages 1, 2, then 2 again (via 1).
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := s.Prev(); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if got := EncodeProgress(s.Progress()); got != "11000" {
		t.Fatalf("progress = %q, want %q", got, "11000")
	}
	if got := store.Get(SuspendDataKey); got != "11000" {
		t.Fatalf("persisted bitmap = %q, want %q", got, "11000")
	}
	if got := store.Get(LessonLocationKey); got != "2" {
		t.Fatalf("persisted page = %q, want %q", got, "2")
	}

	// Next clamps at the last page.
	for i := 0; i < 10; i++ {
		if err := s.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if got := s.CurrentPage(); got != 5 {
		t.Fatalf("CurrentPage after clamped Next = %d, want 5", got)
	}
}

func TestLoadPDFRestoresProgress(t *testing.T) {
	store := NewMemoryStore()
	store.Set(SuspendDataKey, "10100")
	store.Set(LessonLocationKey, "3")
	store.Commit()

	doc := &fakeDoc{pages: 5, w: 612, h: 792}
	s := newSessionWithDoc(t, doc, store)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if got := s.CurrentPage(); got != 3 {
		t.Fatalf("CurrentPage = %d, want restored page 3", got)
	}
	if got := EncodeProgress(s.Progress()); got != "10100" {
		t.Fatalf("progress = %q, want restored %q", got, "10100")
	}
}

func TestLoadPDFIgnoresStaleProgress(t *testing.T) {
	store := NewMemoryStore()
	store.Set(SuspendDataKey, "1111111111")
	store.Set(LessonLocationKey, "9")
	store.Commit()

	doc := &fakeDoc{pages: 3, w: 612, h: 792}
	s := newSessionWithDoc(t, doc, store)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if got := s.CurrentPage(); got != 1 {
		t.Fatalf("CurrentPage = %d, want 1 when marker out of range", got)
	}
	if got := EncodeProgress(s.Progress()); got != "100" {
		t.Fatalf("progress = %q, want %q (stale bitmap dropped)", got, "100")
	}
}

func TestResizeRerendersCurrentPage(t *testing.T) {
	doc := &fakeDoc{pages: 3, w: 612, h: 792}
	s := newSessionWithDoc(t, doc, nil)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if err := s.Resize(250, 250); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if len(doc.renders) != 2 {
		t.Fatalf("renders = %v, want page 1 rendered twice", doc.renders)
	}

	// The redraw used the new viewport scale: 250x250 against 612x792
	// fits at 250/792.
	w, h := s.Surface().Size()
	if h != 250 {
		t.Fatalf("surface = %dx%d, want height 250", w, h)
	}
}

func TestLoadDisposesPreviousDocument(t *testing.T) {
	first := &fakeDoc{pages: 2, w: 612, h: 792}
	second := &fakeDoc{pages: 4, w: 612, h: 792}
	docs := []*fakeDoc{first, second}

	restore := SetDocumentOpenerForTest(func(string) (Document, error) {
		d := docs[0]
		docs = docs[1:]
		return d, nil
	})
	defer restore()

	s := NewViewerSession(nil)
	defer s.Close()
	s.Resize(500, 500)

	srv := newPDFServer(t)
	if err := s.LoadPDF(srv.URL + "/a.pdf"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := s.LoadPDF(srv.URL + "/b.pdf"); err != nil {
		t.Fatalf("second load: %v", err)
	}

	if first.closes == 0 {
		t.Error("previous document not disposed on reload")
	}
	if got := s.PageCount(); got != 4 {
		t.Fatalf("PageCount = %d, want 4", got)
	}
	if got := EncodeProgress(s.Progress()); got != "1000" {
		t.Fatalf("progress = %q, want fresh bitmap %q", got, "1000")
	}
}

func TestSessionClosed(t *testing.T) {
	doc := &fakeDoc{pages: 2, w: 612, h: 792}
	s := newSessionWithDoc(t, doc, nil)

	srv := newPDFServer(t)
	if err := s.LoadPDF(srv.URL + "/doc.pdf"); err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if doc.closes == 0 {
		t.Error("document not disposed on Close")
	}

	if err := s.LoadPDF(srv.URL + "/doc.pdf"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("LoadPDF after Close = %v, want ErrSessionClosed", err)
	}
	if err := s.Next(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Next after Close = %v, want ErrSessionClosed", err)
	}
	// Double close is tolerated.
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestLoadPDFEmptyDocument(t *testing.T) {
	doc := &fakeDoc{pages: 0}
	s := newSessionWithDoc(t, doc, nil)
	defer s.Close()

	if err := s.LoadPDF(newPDFServer(t).URL + "/doc.pdf"); !errors.Is(err, ErrNoPages) {
		t.Fatalf("LoadPDF of empty document = %v, want ErrNoPages", err)
	}
}

package viewer

// SCORM 1.2 data model keys used to persist viewer progress.
const (
	// SuspendDataKey holds the visited-page bitmap string.
	SuspendDataKey = "cmi.suspend_data"

	// LessonLocationKey holds the last viewed page as a decimal string.
	LessonLocationKey = "cmi.core.lesson_location"
)

// ProgressStore is the session's persistence boundary, modeled on the SCORM
// runtime API. Every call is best-effort: a session running outside an LMS
// uses NopStore and all operations silently succeed with empty results.
// Set followed by Commit is the persistence unit.
type ProgressStore interface {
	Initialize() error
	Get(key string) string
	Set(key, value string) error
	Commit() error
	Terminate() error
}

// NopStore is the standalone-mode store. Nothing persists, nothing fails.
type NopStore struct{}

func (NopStore) Initialize() error     { return nil }
func (NopStore) Get(string) string     { return "" }
func (NopStore) Set(_, _ string) error { return nil }
func (NopStore) Commit() error         { return nil }
func (NopStore) Terminate() error      { return nil }

// MemoryStore keeps progress in memory with commit semantics: Get reads the
// committed snapshot, so values written with Set are only visible after
// Commit. Used standalone and by tests.
type MemoryStore struct {
	pending   map[string]string
	committed map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:   make(map[string]string),
		committed: make(map[string]string),
	}
}

func (m *MemoryStore) Initialize() error { return nil }

func (m *MemoryStore) Get(key string) string {
	return m.committed[key]
}

func (m *MemoryStore) Set(key, value string) error {
	m.pending[key] = value
	return nil
}

func (m *MemoryStore) Commit() error {
	for k, v := range m.pending {
		m.committed[k] = v
	}
	return nil
}

func (m *MemoryStore) Terminate() error {
	return m.Commit()
}

// Host is one level of the embedding hierarchy the store locator searches.
// An LMS exposes its runtime API on some ancestor of the content frame.
type Host interface {
	// Store returns the progress store exposed at this level, or nil.
	Store() ProgressStore

	// Parent returns the next level up, or nil at the root.
	Parent() Host
}

// maxLocateAttempts bounds the upward traversal so a miswired frame chain
// cannot loop forever.
const maxLocateAttempts = 7

// LocateStore walks the host hierarchy upward looking for a progress store,
// giving up after a bounded number of levels. When nothing is found the
// session runs standalone against NopStore.
func LocateStore(h Host) ProgressStore {
	for i := 0; i < maxLocateAttempts && h != nil; i++ {
		if store := h.Store(); store != nil {
			return store
		}
		h = h.Parent()
	}
	return NopStore{}
}

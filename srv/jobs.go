package main

import (
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	cache "github.com/patrickmn/go-cache"

	"github.com/opd-ai/pdfscorm/srv/util"
)

type JobState string

const (
	StateCreated    JobState = "created"
	StateConverting JobState = "converting"
	StateCompleted  JobState = "completed"
	StateError      JobState = "error"
)

// jobRetention is how long a conversion's working directory survives after
// the job finishes. Reclamation is driven by cache expiry; a crash before
// eviction leaves orphaned directories for the operator to sweep.
const jobRetention = 30 * time.Minute

type WSMessage struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversionJob tracks one document conversion from upload to downloadable
// PDF. Progress updates stream over an attached WebSocket when one exists;
// without a connection updates are only logged.
type ConversionJob struct {
	mu         sync.RWMutex
	ID         string
	State      JobState
	WorkDir    string
	OutputName string
	Err        error
	WSConn     *websocket.Conn
	StartTime  time.Time
	isActive   bool
}

func (j *ConversionJob) SendUpdate(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	msg := WSMessage{
		Type:      "update",
		Status:    string(j.State),
		Message:   message,
		File:      j.OutputName,
		Timestamp: time.Now(),
	}
	if j.WSConn != nil {
		if err := j.WSConn.WriteJSON(msg); err != nil {
			util.ErrorLogger.Printf("[job %s] WebSocket send failed: %v", j.ID, err)
			return
		}
	}
	util.InfoLogger.Printf("[job %s] %s: %s", j.ID, j.State, message)
}

func (j *ConversionJob) UpdateState(state JobState) {
	j.mu.Lock()
	j.State = state
	j.mu.Unlock()

	switch state {
	case StateConverting:
		j.SendUpdate("Converting document to PDF...")
	case StateCompleted:
		j.SendUpdate("Conversion complete")
	case StateError:
		j.SendUpdate("Conversion failed")
	}
}

func (j *ConversionJob) GetState() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State
}

func (j *ConversionJob) SetOutput(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputName = name
}

func (j *ConversionJob) GetOutput() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.OutputName
}

func (j *ConversionJob) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Err = err
}

func (j *ConversionJob) SetActive(active bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.isActive = active
}

func (j *ConversionJob) IsStillActive() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isActive
}

func (j *ConversionJob) AttachConn(conn *websocket.Conn) {
	j.mu.Lock()
	if j.WSConn != nil {
		j.WSConn.Close()
	}
	j.WSConn = conn
	j.mu.Unlock()
}

func (j *ConversionJob) DetachConn() {
	j.mu.Lock()
	if j.WSConn != nil {
		j.WSConn.Close()
		j.WSConn = nil
	}
	j.mu.Unlock()
}

// JobManager owns the live job table and the retention cache. Finished
// jobs move into the cache; expiry deletes the job's working directory, so
// the cache TTL doubles as the cleanup timer.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*ConversionJob
	done *cache.Cache
}

func NewJobManager(retention time.Duration) *JobManager {
	m := &JobManager{
		jobs: make(map[string]*ConversionJob),
		done: cache.New(retention, 10*time.Minute),
	}
	m.done.OnEvicted(func(id string, v interface{}) {
		job, ok := v.(*ConversionJob)
		if !ok {
			return
		}
		// The directory may already be gone.
		if err := os.RemoveAll(job.WorkDir); err != nil {
			util.ErrorLogger.Printf("[job %s] cleanup failed: %v", id, err)
			return
		}
		util.InfoLogger.Printf("[job %s] working directory reclaimed", id)
	})
	return m
}

func (m *JobManager) Create(id, workDir string) *ConversionJob {
	job := &ConversionJob{
		ID:        id,
		State:     StateCreated,
		WorkDir:   workDir,
		StartTime: time.Now(),
		isActive:  true,
	}
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()
	return job
}

func (m *JobManager) Get(id string) (*ConversionJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if ok {
		return job, true
	}
	if v, found := m.done.Get(id); found {
		if job, ok := v.(*ConversionJob); ok {
			return job, true
		}
	}
	return nil, false
}

// Finish moves a job from the live table into the retention cache.
func (m *JobManager) Finish(job *ConversionJob) {
	job.SetActive(false)
	m.mu.Lock()
	delete(m.jobs, job.ID)
	m.mu.Unlock()
	m.done.Set(job.ID, job, cache.DefaultExpiration)
}

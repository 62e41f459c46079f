package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/opd-ai/pdfscorm/srv/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The conversion UI may be embedded cross-origin.
		return true
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !isValidJobID(jobID) {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, ok := s.jobs.Get(jobID)
	if !ok {
		// The upload response races the client's connect; retry briefly
		// before rejecting.
		for i := 0; i < 5 && !ok; i++ {
			time.Sleep(time.Duration(i*100) * time.Millisecond)
			job, ok = s.jobs.Get(jobID)
		}
		if !ok {
			util.ErrorLogger.Printf("WebSocket for unknown job: %s", jobID)
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.ErrorLogger.Printf("[job %s] WebSocket upgrade failed: %v", jobID, err)
		return
	}

	job.AttachConn(conn)
	job.SendUpdate("Connected")

	// Drain client frames until the peer goes away, then detach.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	job.DetachConn()
	util.InfoLogger.Printf("[job %s] WebSocket closed", jobID)
}

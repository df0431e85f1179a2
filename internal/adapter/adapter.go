// Package adapter is the thin HTTP boundary around a bytetrack.Tracker: it
// decodes a frame's detections from JSON, serializes access to the tracker
// (which is not safe for concurrent use), and encodes the resulting tracks
// back out. It has no dependency on any particular message-bus framework —
// whoever is upstream of HTTP here is free to be anything.
package adapter

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/ridgeline-vision/bytetrack/internal/bytetrack"
	"github.com/ridgeline-vision/bytetrack/internal/geometry"
	"github.com/ridgeline-vision/bytetrack/internal/monitoring"
	"github.com/ridgeline-vision/bytetrack/internal/track"
	"github.com/ridgeline-vision/bytetrack/internal/trackstore"
)

// exitFunc is called after a recovered panic has been logged. It is a
// variable so tests can observe the panic-handling path without actually
// terminating the test binary.
var exitFunc = func() { os.Exit(1) }

var logf = monitoring.Tagged("adapter")

// DetectionPayload is the wire form of a single input detection.
type DetectionPayload struct {
	TLBR      [4]float64 `json:"tlbr"`
	Score     float64    `json:"score"`
	ClassName string     `json:"class_name"`
}

// TrackPayload is the wire form of a single emitted track.
type TrackPayload struct {
	TrackID   int        `json:"track_id"`
	TLWH      [4]float64 `json:"tlwh"`
	Score     float64    `json:"score"`
	ClassName string     `json:"class_name"`
}

type updateRequest struct {
	Detections []DetectionPayload `json:"detections"`
}

type updateResponse struct {
	Tracks []TrackPayload `json:"tracks"`
}

// Server wraps a single bytetrack.Tracker behind an HTTP API. Tracker.Update
// must not be called reentrantly, so every request is serialized through mu.
type Server struct {
	tracker *bytetrack.Tracker
	store   *trackstore.Store // optional; nil disables persistence

	mu sync.Mutex
}

// NewServer wires a tracker (and optionally an event store) behind the
// HTTP handlers below.
func NewServer(tracker *bytetrack.Tracker, store *trackstore.Store) *Server {
	return &Server{tracker: tracker, store: store}
}

// ServeMux builds the server's route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/track", s.recoverMiddleware(s.trackHandler))
	mux.HandleFunc("/healthz", s.healthHandler)
	return mux
}

// recoverMiddleware guards a single request against a panic inside the
// tracker. A panic mid-Update can leave the tracker's internal track lists
// in an inconsistent state, so rather than risk serving further requests
// against a corrupted tracker, the handler responds 500, logs via the
// tagged adapter logger, and the process exits so a supervisor can
// restart it with a fresh tracker.
func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				exitFunc()
			}
		}()
		next(w, r)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) trackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	correlationID := uuid.NewString()

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logf("[%s]: decode failed: %v", correlationID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dets := make([]track.Detection, len(req.Detections))
	for i, d := range req.Detections {
		dets[i] = track.Detection{
			TLBR:      geometry.TLBR(d.TLBR),
			Score:     d.Score,
			ClassName: d.ClassName,
		}
	}

	s.mu.Lock()
	active := func() []*track.Track {
		defer s.mu.Unlock()
		return s.tracker.Update(dets)
	}()

	if s.store != nil {
		if err := s.store.Append(correlationID, active); err != nil {
			logf("[%s]: failed to persist track observations: %v", correlationID, err)
		}
	}

	resp := updateResponse{Tracks: make([]TrackPayload, len(active))}
	for i, tr := range active {
		resp.Tracks[i] = TrackPayload{
			TrackID:   tr.TrackID,
			TLWH:      [4]float64(tr.TLWH),
			Score:     tr.Score,
			ClassName: tr.ClassName,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logf("[%s]: encode failed: %v", correlationID, err)
	}
}

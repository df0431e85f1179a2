package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/ridgeline-vision/bytetrack/internal/bytetrack"
	"github.com/ridgeline-vision/bytetrack/internal/monitoring"
)

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func newTestServer() *Server {
	tracker := bytetrack.NewTracker(bytetrack.DefaultConfig(30, 30))
	return NewServer(tracker, nil)
}

func postDetections(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestTrackHandler_TentativeBirthThenConfirmedEmission(t *testing.T) {
	mux := newTestServer().ServeMux()

	// Births on the sequence's very first frame are confirmed immediately,
	// so post an empty frame first; frame1/frame2 below are the object's
	// first and second sightings.
	rr0 := postDetections(t, mux, `{"detections":[]}`)
	if rr0.Code != http.StatusOK {
		t.Fatalf("empty lead-in frame: expected 200, got %d: %s", rr0.Code, rr0.Body.String())
	}

	frame1 := `{"detections":[{"tlbr":[100,100,150,200],"score":0.9,"class_name":"person"}]}`
	rr1 := postDetections(t, mux, frame1)
	if rr1.Code != http.StatusOK {
		t.Fatalf("frame 1: expected 200, got %d: %s", rr1.Code, rr1.Body.String())
	}
	var resp1 updateResponse
	if err := json.Unmarshal(rr1.Body.Bytes(), &resp1); err != nil {
		t.Fatalf("frame 1: failed to decode response: %v", err)
	}
	if len(resp1.Tracks) != 0 {
		t.Errorf("frame 1: expected a tentative (unemitted) birth, got %d tracks", len(resp1.Tracks))
	}

	frame2 := `{"detections":[{"tlbr":[102,101,152,201],"score":0.9,"class_name":"person"}]}`
	rr2 := postDetections(t, mux, frame2)
	if rr2.Code != http.StatusOK {
		t.Fatalf("frame 2: expected 200, got %d: %s", rr2.Code, rr2.Body.String())
	}
	var resp2 updateResponse
	if err := json.Unmarshal(rr2.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("frame 2: failed to decode response: %v", err)
	}
	if len(resp2.Tracks) != 1 {
		t.Fatalf("frame 2: expected the birth to be confirmed and emitted, got %d tracks", len(resp2.Tracks))
	}
	if resp2.Tracks[0].ClassName != "person" {
		t.Errorf("expected class_name to round-trip, got %q", resp2.Tracks[0].ClassName)
	}
}

func TestTrackHandler_MalformedBodyReturns400(t *testing.T) {
	mux := newTestServer().ServeMux()

	rr := postDetections(t, mux, `{not valid json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestTrackHandler_WrongMethodReturns405(t *testing.T) {
	mux := newTestServer().ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/track", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /track, got %d", rr.Code)
	}
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	mux := newTestServer().ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", rr.Code)
	}
}

func TestTrackHandler_DecodeFailurePropagatesCorrelationIDToLogger(t *testing.T) {
	var captured []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	mux := newTestServer().ServeMux()
	rr := postDetections(t, mux, `{not valid json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	if len(captured) == 0 {
		t.Fatal("expected a log line for the decode failure")
	}
	if !uuidPattern.MatchString(captured[0]) {
		t.Errorf("expected the logged line to carry a correlation id, got %q", captured[0])
	}
}

func TestRecoverMiddleware_PanicLogsAndSignalsExit(t *testing.T) {
	var captured []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	exited := false
	prevExit := exitFunc
	exitFunc = func() { exited = true }
	defer func() { exitFunc = prevExit }()

	s := newTestServer()
	handler := s.recoverMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("simulated tracker corruption")
	})

	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after a recovered panic, got %d", rr.Code)
	}
	if !exited {
		t.Error("expected exitFunc to be invoked after a recovered panic")
	}
	if len(captured) == 0 {
		t.Error("expected the panic to be logged")
	}
}

// Package bytetrack implements the two-stage BYTE association pipeline that
// turns a per-frame list of detections into a stable set of identity-bearing
// tracks: predict every live track, match high-confidence detections first,
// match the still-unmatched tracked tracks against low-confidence detections
// under a tighter IoU-distance cutoff, then birth and retire as needed.
package bytetrack

import (
	"github.com/ridgeline-vision/bytetrack/internal/geometry"
	"github.com/ridgeline-vision/bytetrack/internal/kalman"
	"github.com/ridgeline-vision/bytetrack/internal/lap"
	"github.com/ridgeline-vision/bytetrack/internal/track"
)

// lowConfFloor is the score below which a detection is discarded outright
// rather than entering the second association round.
const lowConfFloor = 0.1

// Config holds the tracker's tunable parameters.
type Config struct {
	TrackThresh float64
	HighThresh  float64

	// FirstStageMatchThresh is the maximum allowed IoU distance (1-IoU)
	// for a first-round (high-confidence) match.
	FirstStageMatchThresh float64
	// SecondStageMatchThresh is the tighter cutoff for the second-round
	// (low-confidence rescue) match, exposed as its own field rather than
	// a hardcoded constant so it is tunable without recompilation.
	SecondStageMatchThresh float64

	FrameRate   int
	TrackBuffer int
}

// DefaultConfig returns the canonical parameter set for a given frame rate
// and lost-track retention window. trackBuffer counts frames at a 30 fps
// reference rate; the effective window is trackBuffer*frameRate/30 frames.
func DefaultConfig(frameRate, trackBuffer int) Config {
	return Config{
		TrackThresh:            0.5,
		HighThresh:             0.6,
		FirstStageMatchThresh:  0.8,
		SecondStageMatchThresh: 0.5,
		FrameRate:              frameRate,
		TrackBuffer:            trackBuffer,
	}
}

func (c Config) maxTimeLost() int {
	return int(float64(c.FrameRate) / 30.0 * float64(c.TrackBuffer))
}

// Tracker holds the per-stream state carried across frames. It is not
// safe for concurrent use — callers that need to serialize access (e.g.
// an HTTP handler) must hold their own lock around Update.
type Tracker struct {
	cfg Config
	kf  *kalman.Filter

	frameID   int
	idCounter int

	trackedStracks []*track.Track
	lostStracks    []*track.Track
	removedStracks []*track.Track
}

// NewTracker returns a tracker ready to process frames under cfg.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, kf: kalman.New()}
}

func (t *Tracker) nextID() int {
	t.idCounter++
	return t.idCounter
}

// RemovedStracks returns the tracks retired on the most recent Update call.
func (t *Tracker) RemovedStracks() []*track.Track {
	return t.removedStracks
}

// Update advances the tracker by one frame and returns the subset of
// tracked tracks that are activated (confirmed and ready to emit).
func (t *Tracker) Update(detections []track.Detection) []*track.Track {
	t.frameID++
	t.removedStracks = nil

	highDets, lowDets := partitionByConfidence(detections, t.cfg.TrackThresh)

	pool := make([]*track.Track, 0, len(t.trackedStracks)+len(t.lostStracks))
	pool = append(pool, t.trackedStracks...)
	pool = append(pool, t.lostStracks...)
	track.MultiPredict(pool, t.kf)

	matchedPool := make([]bool, len(pool))
	matchedHigh := make([]bool, len(highDets))

	var activated, refound []*track.Track

	cost1 := geometry.IoUDistance(boxesOf(pool), detBoxes(highDets))
	geometry.FuseScore(cost1, detScores(highDets))
	poolToHigh, _ := lap.SolveRectangular(cost1, t.cfg.FirstStageMatchThresh)
	for pi, hi := range poolToHigh {
		if hi < 0 {
			continue
		}
		matchedPool[pi] = true
		matchedHigh[hi] = true
		tr, det := pool[pi], highDets[hi]
		if tr.State == track.Tracked {
			tr.Update(t.kf, det, t.frameID)
			activated = append(activated, tr)
		} else {
			tr.ReActivate(t.kf, det, t.frameID, false, t.nextID)
			refound = append(refound, tr)
		}
	}

	var remainPool []*track.Track
	for pi, tr := range pool {
		if !matchedPool[pi] && tr.State == track.Tracked {
			remainPool = append(remainPool, tr)
		}
	}
	matchedRemain := make([]bool, len(remainPool))
	cost2 := geometry.IoUDistance(boxesOf(remainPool), detBoxes(lowDets))
	remainToLow, _ := lap.SolveRectangular(cost2, t.cfg.SecondStageMatchThresh)
	for ri, li := range remainToLow {
		if li < 0 {
			continue
		}
		matchedRemain[ri] = true
		tr := remainPool[ri]
		tr.Update(t.kf, lowDets[li], t.frameID)
		activated = append(activated, tr)
	}

	var newLost []*track.Track
	for ri, tr := range remainPool {
		if !matchedRemain[ri] {
			tr.MarkLost()
			newLost = append(newLost, tr)
		}
	}

	var stillLost []*track.Track
	for pi, tr := range pool {
		if tr.State == track.Lost && !matchedPool[pi] {
			stillLost = append(stillLost, tr)
		}
	}

	var born []*track.Track
	for hi, det := range highDets {
		if matchedHigh[hi] || det.Score < t.cfg.HighThresh {
			continue
		}
		nt := track.NewTrack(det)
		nt.Activate(t.kf, t.nextID, t.frameID)
		born = append(born, nt)
	}

	candidateLost := append(append([]*track.Track{}, stillLost...), newLost...)
	var finalLost []*track.Track
	maxTimeLost := t.cfg.maxTimeLost()
	for _, tr := range candidateLost {
		if t.frameID-tr.FrameID > maxTimeLost {
			tr.MarkRemoved()
			t.removedStracks = append(t.removedStracks, tr)
		} else {
			finalLost = append(finalLost, tr)
		}
	}

	finalTracked := append(append(append([]*track.Track{}, activated...), refound...), born...)
	finalTracked, finalLost = dedupByTrackID(finalTracked, finalLost)

	t.trackedStracks = finalTracked
	t.lostStracks = finalLost

	var out []*track.Track
	for _, tr := range finalTracked {
		if tr.IsActivated {
			out = append(out, tr)
		}
	}
	return out
}

func partitionByConfidence(detections []track.Detection, trackThresh float64) (high, low []track.Detection) {
	for _, d := range detections {
		switch {
		case d.Score >= trackThresh:
			high = append(high, d)
		case d.Score >= lowConfFloor:
			low = append(low, d)
		}
	}
	return high, low
}

// dedupByTrackID resolves any track_id present in both lists in favor of
// whichever entry has the longer active tracklet, with tracked winning ties.
func dedupByTrackID(tracked, lost []*track.Track) ([]*track.Track, []*track.Track) {
	trackedIdx := make(map[int]int, len(tracked))
	for i, tr := range tracked {
		trackedIdx[tr.TrackID] = i
	}

	dropFromTracked := make(map[int]bool)
	lostOut := make([]*track.Track, 0, len(lost))
	for _, ltr := range lost {
		ti, dup := trackedIdx[ltr.TrackID]
		if !dup {
			lostOut = append(lostOut, ltr)
			continue
		}
		ttr := tracked[ti]
		trackedLen := ttr.FrameID - ttr.StartFrame
		lostLen := ltr.FrameID - ltr.StartFrame
		if lostLen > trackedLen {
			dropFromTracked[ttr.TrackID] = true
			lostOut = append(lostOut, ltr)
		}
	}

	trackedOut := make([]*track.Track, 0, len(tracked))
	for _, tr := range tracked {
		if !dropFromTracked[tr.TrackID] {
			trackedOut = append(trackedOut, tr)
		}
	}
	return trackedOut, lostOut
}

func boxesOf(tracks []*track.Track) []geometry.TLBR {
	out := make([]geometry.TLBR, len(tracks))
	for i, tr := range tracks {
		out[i] = tr.TLBR()
	}
	return out
}

func detBoxes(dets []track.Detection) []geometry.TLBR {
	out := make([]geometry.TLBR, len(dets))
	for i, d := range dets {
		out[i] = d.TLBR
	}
	return out
}

func detScores(dets []track.Detection) []float64 {
	out := make([]float64, len(dets))
	for i, d := range dets {
		out[i] = d.Score
	}
	return out
}

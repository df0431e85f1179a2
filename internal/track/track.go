// Package track implements the per-object track entity and its lifecycle
// state machine: a track moves from New through Tracked, optionally to Lost
// and back, and finally to Removed. The tracker orchestrator drives these
// transitions; a Track never looks back at its owner.
package track

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ridgeline-vision/bytetrack/internal/geometry"
	"github.com/ridgeline-vision/bytetrack/internal/kalman"
	"github.com/ridgeline-vision/bytetrack/internal/monitoring"
)

var logf = monitoring.Tagged("track")

// State is a track's lifecycle stage.
type State string

const (
	New     State = "new"
	Tracked State = "tracked"
	Lost    State = "lost"
	Removed State = "removed"
)

// Detection is a single frame's raw input: a box in image coordinates plus
// the detector's confidence and class label.
type Detection struct {
	TLBR      geometry.TLBR
	Score     float64
	ClassName string
}

// Track is one tracked object's full state across frames. The (Mean, Cov)
// pair is nil until Activate is called; TLWH always reflects the most
// recently computed box, whether from a fresh detection or a coast-forward
// prediction.
type Track struct {
	TrackID     int
	State       State
	IsActivated bool
	Score       float64
	ClassName   string
	TLWH        geometry.TLWH

	Mean *mat.VecDense
	Cov  *mat.SymDense

	FrameID     int
	StartFrame  int
	TrackletLen int
}

// NewTrack builds an unactivated track from a detection. Its TrackID is 0
// and its state is New until Activate assigns an identity.
func NewTrack(det Detection) *Track {
	return &Track{
		TLWH:      det.TLBR.ToTLWH(),
		Score:     det.Score,
		ClassName: det.ClassName,
		State:     New,
	}
}

// Activate mints a track ID via nextID and seeds the Kalman state from the
// track's current box. frameID is the frame on which the track was born;
// IsActivated is only set true immediately when this is the very first
// frame of the sequence (frameID == 1), matching the convention that a
// track born mid-sequence stays tentative until its first re-association.
func (t *Track) Activate(kf *kalman.Filter, nextID func() int, frameID int) {
	t.TrackID = nextID()
	t.Mean, t.Cov = kf.Initiate([4]float64(t.TLWH.ToXYAH()))
	t.TrackletLen = 0
	t.State = Tracked
	t.IsActivated = frameID == 1
	t.FrameID = frameID
	t.StartFrame = frameID
}

// ReActivate revives a Lost track with a newly matched detection. If newID
// is true the track is assigned a fresh identity via nextID rather than
// keeping its old one — used when a detection is matched to a lost track
// whose identity the caller has decided not to preserve.
func (t *Track) ReActivate(kf *kalman.Filter, det Detection, frameID int, newID bool, nextID func() int) {
	xyah := det.TLBR.ToTLWH().ToXYAH()
	if mean, cov, err := kf.Update(t.Mean, t.Cov, [4]float64(xyah)); err != nil {
		logf("%d: re-activation update degenerate, keeping prior state: %v", t.TrackID, err)
	} else {
		t.Mean, t.Cov = mean, cov
	}
	t.TLWH = meanToTLWH(t.Mean)
	t.TrackletLen = 0
	t.State = Tracked
	t.IsActivated = true
	t.FrameID = frameID
	if newID {
		t.TrackID = nextID()
	}
	t.Score = det.Score
	t.ClassName = det.ClassName
}

// Update corrects an already-tracked track with its matched detection for
// the current frame.
func (t *Track) Update(kf *kalman.Filter, det Detection, frameID int) {
	xyah := det.TLBR.ToTLWH().ToXYAH()
	if mean, cov, err := kf.Update(t.Mean, t.Cov, [4]float64(xyah)); err != nil {
		logf("%d: update degenerate, keeping prior state: %v", t.TrackID, err)
	} else {
		t.Mean, t.Cov = mean, cov
	}
	t.TLWH = meanToTLWH(t.Mean)
	t.TrackletLen++
	t.State = Tracked
	t.IsActivated = true
	t.FrameID = frameID
	t.Score = det.Score
	t.ClassName = det.ClassName
}

// MarkLost transitions the track to Lost. It does not touch the Kalman
// state; the next Predict call will coast it forward with zeroed velocity.
func (t *Track) MarkLost() {
	t.State = Lost
}

// MarkRemoved transitions the track to Removed, its terminal state.
func (t *Track) MarkRemoved() {
	t.State = Removed
}

// Predict advances the track's Kalman state by one frame. Tracks that are
// not currently Tracked have their velocity zeroed before the predict step,
// so a coasting Lost track holds its last known position rather than
// extrapolating motion it can no longer observe.
func (t *Track) Predict(kf *kalman.Filter) {
	if t.State != Tracked {
		for i := 4; i < 8; i++ {
			t.Mean.SetVec(i, 0)
		}
	}
	t.Mean, t.Cov = kf.Predict(t.Mean, t.Cov)
	t.TLWH = meanToTLWH(t.Mean)
}

// MultiPredict runs Predict over a batch of tracks. Kept as a free function
// rather than a method so callers can't mistake it for an instance method
// on a single track.
func MultiPredict(tracks []*Track, kf *kalman.Filter) {
	for _, t := range tracks {
		t.Predict(kf)
	}
}

// TLBR returns the track's current box in corner form.
func (t *Track) TLBR() geometry.TLBR {
	return t.TLWH.ToTLBR()
}

func meanToTLWH(mean *mat.VecDense) geometry.TLWH {
	var xyah geometry.XYAH
	for i := 0; i < 4; i++ {
		xyah[i] = mean.AtVec(i)
	}
	return xyah.ToTLWH()
}

// Package geometry provides bounding-box format conversions and the IoU-based
// cost-matrix helpers used by the tracker's association stages. Boxes are
// plain float64 4-vectors; no matrix library is pulled in here since the
// arithmetic never exceeds a handful of scalar comparisons per call.
package geometry

// TLWH is (top-left x, top-left y, width, height).
type TLWH [4]float64

// TLBR is (x1, y1, x2, y2) with x2>=x1, y2>=y1.
type TLBR [4]float64

// XYAH is (center x, center y, aspect=w/h, height) — the filter's
// measurement space.
type XYAH [4]float64

// ToXYAH converts a tlwh box to the filter's xyah measurement space.
func (b TLWH) ToXYAH() XYAH {
	x, y, w, h := b[0], b[1], b[2], b[3]
	var aspect float64
	if h > 0 {
		aspect = w / h
	}
	return XYAH{x + w/2, y + h/2, aspect, h}
}

// ToTLBR converts a tlwh box to its top-left/bottom-right corners.
func (b TLWH) ToTLBR() TLBR {
	return TLBR{b[0], b[1], b[0] + b[2], b[1] + b[3]}
}

// ToTLWH converts an xyah box back to tlwh. Used to project a Kalman mean
// back into the box representation a caller expects.
func (b XYAH) ToTLWH() TLWH {
	cx, cy, aspect, h := b[0], b[1], b[2], b[3]
	w := aspect * h
	return TLWH{cx - w/2, cy - h/2, w, h}
}

// ToTLWH converts a tlbr box to top-left/width/height.
func (b TLBR) ToTLWH() TLWH {
	return TLWH{b[0], b[1], b[2] - b[0], b[3] - b[1]}
}

// area returns the area of a tlbr box, or 0 if degenerate.
func (b TLBR) area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union of two tlbr boxes. Returns 0 if
// either box has zero area or the boxes do not intersect.
func IoU(a, b TLBR) float64 {
	areaA := a.area()
	areaB := b.area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	ix1 := max(a[0], b[0])
	iy1 := max(a[1], b[1])
	ix2 := min(a[2], b[2])
	iy2 := min(a[3], b[3])

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	intersection := iw * ih
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// IoUDistance builds the cost matrix M[i][j] = 1 - IoU(tracks[i], dets[j]).
func IoUDistance(tracks, dets []TLBR) [][]float64 {
	m := make([][]float64, len(tracks))
	for i, t := range tracks {
		row := make([]float64, len(dets))
		for j, d := range dets {
			row[j] = 1 - IoU(t, d)
		}
		m[i] = row
	}
	return m
}

// FuseScore fuses detection confidence into an existing IoU-distance cost
// matrix in place: cost[i][j] <- 1 - (1-cost[i][j])*scores[j].
func FuseScore(cost [][]float64, scores []float64) {
	for i := range cost {
		for j := range cost[i] {
			iou := 1 - cost[i][j]
			cost[i][j] = 1 - iou*scores[j]
		}
	}
}

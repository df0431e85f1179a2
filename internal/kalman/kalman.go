// Package kalman implements a constant-velocity Kalman filter over
// bounding-box state in xyah (center x, center y, aspect ratio, height)
// coordinates, the motion model the tracker uses to predict and correct
// each track's position between detections. The filter itself holds no
// per-track state — callers own the (mean, covariance) pair and pass it
// into each operation, mirroring the teacher's approach of keeping the
// numeric core a pure function of its inputs.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	stdWeightPosition = 1.0 / 20
	stdWeightVelocity = 1.0 / 160
)

// Chi2inv95 holds the 95% quantiles of the chi-squared distribution with
// 1..9 degrees of freedom, indexed by degrees of freedom (index 0 unused).
// Used as a gating threshold on the Mahalanobis distance.
var Chi2inv95 = [10]float64{0, 3.8415, 5.9915, 7.8147, 9.4877, 11.070, 12.592, 14.067, 15.507, 16.919}

// Filter is a stateless constant-velocity Kalman filter over an 8-dim
// state [x,y,a,h,vx,vy,va,vh]. The transition matrix is block [[I4,I4],
// [0,I4]] for a unit time step; the observation matrix projects out the
// first four (position) components.
type Filter struct{}

// New returns a ready-to-use filter. It carries no fields; it exists so
// call sites read like other stateful collaborators in this codebase.
func New() *Filter {
	return &Filter{}
}

// Initiate creates the (mean, covariance) state for a new track from its
// first xyah measurement. Velocity components start at zero; positional
// uncertainty is scaled by the measurement's height.
func (f *Filter) Initiate(measurement [4]float64) (mean *mat.VecDense, cov *mat.SymDense) {
	h := measurement[3]

	mean = mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		mean.SetVec(i, measurement[i])
	}

	std := [8]float64{
		2 * stdWeightPosition * h,
		2 * stdWeightPosition * h,
		1e-2,
		2 * stdWeightPosition * h,
		10 * stdWeightVelocity * h,
		10 * stdWeightVelocity * h,
		1e-5,
		10 * stdWeightVelocity * h,
	}
	cov = mat.NewSymDense(8, nil)
	for i, s := range std {
		cov.SetSym(i, i, s*s)
	}
	return mean, cov
}

// Predict advances (mean, cov) one unit time step under the constant
// velocity model: mean <- F*mean, cov <- F*cov*F' + Q, where Q is
// diagonal and scaled by the current height.
func (f *Filter) Predict(mean *mat.VecDense, cov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {
	h := mean.AtVec(3)

	newMean := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		newMean.SetVec(i, mean.AtVec(i)+mean.AtVec(i+4))
	}
	for i := 4; i < 8; i++ {
		newMean.SetVec(i, mean.AtVec(i))
	}

	F := transitionMatrix()
	tmp := &mat.Dense{}
	tmp.Mul(F, cov)
	full := &mat.Dense{}
	full.Mul(tmp, F.T())

	q := processNoise(h)
	newCov := mat.NewSymDense(8, nil)
	for i := 0; i < 8; i++ {
		for j := i; j < 8; j++ {
			v := full.At(i, j)
			if i == j {
				v += q[i]
			}
			newCov.SetSym(i, j, v)
		}
	}
	return newMean, newCov
}

// Project maps (mean, cov) into the 4-dim measurement space, adding
// measurement noise R.
func (f *Filter) Project(mean *mat.VecDense, cov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {
	h := mean.AtVec(3)

	projMean := mat.NewVecDense(4, nil)
	for i := 0; i < 4; i++ {
		projMean.SetVec(i, mean.AtVec(i))
	}

	H := observationMatrix()
	tmp := &mat.Dense{}
	tmp.Mul(H, cov)
	full := &mat.Dense{}
	full.Mul(tmp, H.T())

	r := measurementNoise(h)
	projCov := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			v := full.At(i, j)
			if i == j {
				v += r[i]
			}
			projCov.SetSym(i, j, v)
		}
	}
	return projMean, projCov
}

// Update corrects (mean, cov) with an observed xyah measurement, using
// the Cholesky factorization of the innovation covariance to avoid an
// explicit matrix inverse. If the innovation covariance is not positive
// definite — a numerical degeneracy that should not occur on well-formed
// input — it returns the unmodified (mean, cov) and a non-nil error so
// the caller can treat the measurement as unmatched for this track.
func (f *Filter) Update(mean *mat.VecDense, cov *mat.SymDense, measurement [4]float64) (*mat.VecDense, *mat.SymDense, error) {
	projMean, projCov := f.Project(mean, cov)

	var chol mat.Cholesky
	if ok := chol.Factorize(projCov); !ok {
		return mean, cov, fmt.Errorf("kalman: innovation covariance is not positive definite")
	}

	H := observationMatrix()
	// K = cov * H' * S^-1, computed via chol.SolveTo so we never form S^-1
	// explicitly.
	covHT := &mat.Dense{}
	covHT.Mul(cov, H.T())

	var kalmanGainT mat.Dense
	if err := chol.SolveTo(&kalmanGainT, covHT.T()); err != nil {
		return mean, cov, fmt.Errorf("kalman: failed to solve for gain: %w", err)
	}
	gain := &mat.Dense{}
	gain.CloneFrom(kalmanGainT.T())

	innovation := mat.NewVecDense(4, nil)
	for i := 0; i < 4; i++ {
		innovation.SetVec(i, measurement[i]-projMean.AtVec(i))
	}

	correction := &mat.Dense{}
	correction.Mul(gain, innovation)

	newMean := mat.NewVecDense(8, nil)
	for i := 0; i < 8; i++ {
		newMean.SetVec(i, mean.AtVec(i)+correction.At(i, 0))
	}

	gainH := &mat.Dense{}
	gainH.Mul(gain, H)
	factor := &mat.Dense{}
	factor.Sub(identity(8), gainH)
	newCovFull := &mat.Dense{}
	newCovFull.Mul(factor, cov)

	newCov := mat.NewSymDense(8, nil)
	for i := 0; i < 8; i++ {
		for j := i; j < 8; j++ {
			newCov.SetSym(i, j, newCovFull.At(i, j))
		}
	}
	return newMean, newCov, nil
}

// GatingDistance returns, for each measurement, the squared Mahalanobis
// distance to the projected distribution: (m-mu)' * S^-1 * (m-mu), where
// S^-1*(m-mu) is obtained from the Cholesky factorization of the projected
// covariance S. This equals solving L*z=(m-mu) for the Cholesky factor L and
// summing z_i^2. If onlyPosition, only the first two (x,y) dimensions are
// used.
func (f *Filter) GatingDistance(mean *mat.VecDense, cov *mat.SymDense, measurements [][4]float64, onlyPosition bool) ([]float64, error) {
	projMean, projCov := f.Project(mean, cov)

	dim := 4
	if onlyPosition {
		dim = 2
	}

	sub := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sub.SetSym(i, j, projCov.At(i, j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sub); !ok {
		return nil, fmt.Errorf("kalman: projected covariance is not positive definite")
	}

	out := make([]float64, len(measurements))
	for k, m := range measurements {
		diff := mat.NewVecDense(dim, nil)
		for i := 0; i < dim; i++ {
			diff.SetVec(i, m[i]-projMean.AtVec(i))
		}
		var z mat.VecDense
		if err := chol.SolveVecTo(&z, diff); err != nil {
			return nil, fmt.Errorf("kalman: gating solve failed: %w", err)
		}
		sum := 0.0
		for i := 0; i < dim; i++ {
			sum += diff.AtVec(i) * z.AtVec(i)
		}
		out[k] = sum
	}
	return out, nil
}

func transitionMatrix() *mat.Dense {
	F := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		F.Set(i, i, 1)
	}
	for i := 0; i < 4; i++ {
		F.Set(i, i+4, 1)
	}
	return F
}

func observationMatrix() *mat.Dense {
	H := mat.NewDense(4, 8, nil)
	for i := 0; i < 4; i++ {
		H.Set(i, i, 1)
	}
	return H
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// processNoise returns the diagonal of Q for a predict step with current
// height h, following the same std-then-square convention as Initiate.
func processNoise(h float64) [8]float64 {
	std := [8]float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-2,
		stdWeightPosition * h,
		stdWeightVelocity * h,
		stdWeightVelocity * h,
		1e-5,
		stdWeightVelocity * h,
	}
	var q [8]float64
	for i, s := range std {
		q[i] = s * s
	}
	return q
}

// measurementNoise returns the diagonal of R for the projection step.
func measurementNoise(h float64) [4]float64 {
	std := [4]float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-1,
		stdWeightPosition * h,
	}
	var r [4]float64
	for i, s := range std {
		r[i] = s * s
	}
	return r
}

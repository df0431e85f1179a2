package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiate_ProjectRoundTrip(t *testing.T) {
	f := New()
	measurement := [4]float64{100, 200, 0.5, 80}
	mean, cov := f.Initiate(measurement)

	projMean, _ := f.Project(mean, cov)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, measurement[i], projMean.AtVec(i), 1e-9, "position component %d", i)
	}
}

func TestInitiate_ZeroVelocity(t *testing.T) {
	f := New()
	mean, _ := f.Initiate([4]float64{0, 0, 1, 10})
	for i := 4; i < 8; i++ {
		assert.Equal(t, 0.0, mean.AtVec(i))
	}
}

func TestPredict_AdvancesPositionByVelocity(t *testing.T) {
	f := New()
	mean, cov := f.Initiate([4]float64{0, 0, 1, 10})
	mean.SetVec(4, 5) // vx = 5
	predicted, _ := f.Predict(mean, cov)
	assert.InDelta(t, 5.0, predicted.AtVec(0), 1e-9)
	assert.InDelta(t, 5.0, predicted.AtVec(4), 1e-9, "velocity is carried forward unchanged")
}

func TestUpdate_ExactMeasurementIsIdempotent(t *testing.T) {
	f := New()
	mean, cov := f.Initiate([4]float64{100, 100, 0.5, 50})
	predicted, predictedCov := f.Predict(mean, cov)
	projMean, _ := f.Project(predicted, predictedCov)

	var exact [4]float64
	for i := 0; i < 4; i++ {
		exact[i] = projMean.AtVec(i)
	}

	updated, _, err := f.Update(predicted, predictedCov, exact)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, projMean.AtVec(i), updated.AtVec(i), 1e-6, "component %d", i)
	}
}

func TestUpdate_PullsMeanTowardMeasurement(t *testing.T) {
	f := New()
	mean, cov := f.Initiate([4]float64{0, 0, 1, 10})
	predicted, predictedCov := f.Predict(mean, cov)

	measurement := [4]float64{5, 0, 1, 10}
	updated, _, err := f.Update(predicted, predictedCov, measurement)
	require.NoError(t, err)

	assert.Greater(t, updated.AtVec(0), 0.0, "updated x should move toward the measurement")
	assert.Less(t, updated.AtVec(0), 5.0, "updated x should not overshoot the measurement")
}

func TestGatingDistance_ZeroForExactMeasurement(t *testing.T) {
	f := New()
	mean, cov := f.Initiate([4]float64{10, 10, 1, 20})
	predicted, predictedCov := f.Predict(mean, cov)
	projMean, _ := f.Project(predicted, predictedCov)

	var exact [4]float64
	for i := 0; i < 4; i++ {
		exact[i] = projMean.AtVec(i)
	}

	dists, err := f.GatingDistance(predicted, predictedCov, [][4]float64{exact}, false)
	require.NoError(t, err)
	require.Len(t, dists, 1)
	assert.InDelta(t, 0, dists[0], 1e-6)
}

func TestGatingDistance_OnlyPositionUsesTwoDims(t *testing.T) {
	f := New()
	mean, cov := f.Initiate([4]float64{10, 10, 1, 20})

	far := [4]float64{10, 10, 5, 100}
	dists, err := f.GatingDistance(mean, cov, [][4]float64{far}, true)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(dists[0]))
	assert.GreaterOrEqual(t, dists[0], 0.0)
	// x and y match the mean exactly, so with only those two dimensions in
	// play the aspect and height differences contribute nothing.
	assert.InDelta(t, 0.0, dists[0], 1e-9)
}

func TestChi2inv95_HasTenEntries(t *testing.T) {
	require.Len(t, Chi2inv95, 10)
	assert.Equal(t, 0.0, Chi2inv95[0])
	assert.InDelta(t, 9.4877, Chi2inv95[4], 1e-4)
}

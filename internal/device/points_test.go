package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointsWindow_FirstPointSetsBase(t *testing.T) {
	var w PointsWindow
	w.Apply(7, 101.5)

	assert.Equal(t, 7, w.BaseIndex)
	assert.Equal(t, []float64{101.5}, w.Points)
	assert.Equal(t, 8, w.TotalPoints)
}

func TestPointsWindow_GapResetsToSinglePoint(t *testing.T) {
	var w PointsWindow
	w.Apply(0, 1.0)
	w.Apply(1, 2.0)
	w.Apply(5, 6.0)

	assert.Equal(t, 5, w.BaseIndex)
	assert.Equal(t, []float64{6.0}, w.Points)
	assert.Equal(t, 6, w.TotalPoints)
	assert.True(t, w.Discontinuity)
}

func TestPointsWindow_ReplayOverwritesInPlace(t *testing.T) {
	var w PointsWindow
	w.Init(10, []float64{1.0, 2.0, 3.0}, 13)
	w.Apply(11, 2.5)

	assert.Equal(t, 10, w.BaseIndex)
	assert.Equal(t, []float64{1.0, 2.5, 3.0}, w.Points)
	assert.Equal(t, 13, w.TotalPoints)
}

func TestPointsWindow_StalePointIgnored(t *testing.T) {
	var w PointsWindow
	w.Init(10, []float64{1.0, 2.0}, 12)
	w.Apply(4, 9.9)

	assert.Equal(t, 10, w.BaseIndex)
	assert.Equal(t, []float64{1.0, 2.0}, w.Points)
	// The high-water mark tracks indices ever observed, stale or not.
	assert.Equal(t, 12, w.TotalPoints)
}

func TestPointsWindow_AppendAtEnd(t *testing.T) {
	var w PointsWindow
	w.Init(0, []float64{1.0}, 1)
	w.Apply(1, 2.0)
	w.Apply(2, 3.0)

	assert.Equal(t, []float64{1.0, 2.0, 3.0}, w.Points)
	assert.Equal(t, 3, w.TotalPoints)
	assert.False(t, w.Discontinuity)
}

func TestPointsWindow_InitClearsDiscontinuity(t *testing.T) {
	var w PointsWindow
	w.Apply(0, 1.0)
	w.Apply(9, 2.0)
	assert.True(t, w.Discontinuity)

	w.Init(9, []float64{2.0}, 10)
	assert.False(t, w.Discontinuity)
}

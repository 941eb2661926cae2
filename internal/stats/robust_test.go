package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedianMADOddAndEvenLengths(t *testing.T) {
	median, mad := MedianMAD([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 3.0, median)
	assert.Equal(t, 1.0, mad)

	median, mad = MedianMAD([]float64{1, 2, 3, 4})
	assert.Equal(t, 2.5, median)
	assert.Equal(t, 1.0, mad)
}

func TestMedianMADDoesNotMutateInput(t *testing.T) {
	xs := []float64{5, 1, 3, 2, 4}
	_, _ = MedianMAD(xs)
	assert.Equal(t, []float64{5, 1, 3, 2, 4}, xs)
}

func TestRobustZFlatBaselineDoesNotBlowUp(t *testing.T) {
	median, mad := MedianMAD([]float64{10, 10, 10, 10})
	z := RobustZ(95, median, mad)
	assert.False(t, isNaNOrInf(z))
	assert.Greater(t, z, 0.0)
}

func TestRobustZSignMatchesDirection(t *testing.T) {
	median, mad := MedianMAD([]float64{20, 22, 21, 19, 20})
	above := RobustZ(90, median, mad)
	below := RobustZ(0, median, mad)
	assert.Greater(t, above, 0.0)
	assert.Less(t, below, 0.0)
}

func isNaNOrInf(f float64) bool {
	return f != f || f > 1e300 || f < -1e300
}

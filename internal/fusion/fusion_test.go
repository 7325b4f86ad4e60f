package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEWMAFirstObservationSeedsEstimate(t *testing.T) {
	e := NewEWMA(0.7)
	result := e.Update(0.55)
	assert.InDelta(t, 0.55, result, 1e-9)
}

func TestEWMASmoothing(t *testing.T) {
	e := NewEWMA(0.5)
	e.Update(0.40)
	result := e.Update(0.60)
	assert.InDelta(t, 0.50, result, 1e-9)
}

func TestEWMAConvergesToConstantInput(t *testing.T) {
	e := NewEWMA(0.3)
	var last float64
	for i := 0; i < 200; i++ {
		last = e.Update(0.42)
	}
	assert.InDelta(t, 0.42, last, 1e-6)
}

func TestEWMAStaysInUnitInterval(t *testing.T) {
	e := NewEWMA(0.9)
	for _, x := range []float64{0.1, 0.9, 0.0, 1.0, 0.5} {
		v := e.Update(x)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestMultiSourceFusionAveragesThenSmooths(t *testing.T) {
	f := NewMultiSourceFuser(1.0)
	f.UpdateSource("binance", 50000)
	price := f.UpdateSource("coinbase", 50100)
	assert.Greater(t, price, 50000.0)
	assert.Less(t, price, 50100.0)
	assert.Equal(t, 2, f.SourceCount())
}

func TestMultiSourceSingleSourceUpdate(t *testing.T) {
	f := NewMultiSourceFuser(0.7)
	f.UpdateSource("binance", 50000)
	current, ok := f.Current()
	require.True(t, ok)
	assert.Equal(t, 50000.0, current)
}

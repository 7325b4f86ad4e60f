package kelly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroWhenNoEdge(t *testing.T) {
	s := NewSizer(0.25)
	assert.Equal(t, 0.0, s.OptimalSize(0.40, 0.50, 1000))
}

func TestZeroOutsideMarketRange(t *testing.T) {
	s := NewSizer(0.25)
	assert.Equal(t, 0.0, s.OptimalFraction(0.6, 0))
	assert.Equal(t, 0.0, s.OptimalFraction(0.6, 1))
}

func TestZeroWhenBankrollNonPositive(t *testing.T) {
	s := NewSizer(0.25)
	assert.Equal(t, 0.0, s.OptimalSize(0.6, 0.5, 0))
	assert.Equal(t, 0.0, s.OptimalSize(0.6, 0.5, -5))
}

func TestPositiveEdgeGivesPositiveSize(t *testing.T) {
	s := NewSizer(0.25)
	size := s.OptimalSize(0.60, 0.50, 1000)
	assert.Greater(t, size, 0.0)
	assert.LessOrEqual(t, size, 1000*s.MaxFraction)
}

func TestQuarterKellyLessThanFullKelly(t *testing.T) {
	quarter := NewSizer(0.25)
	full := &Sizer{Fraction: 1.0, MaxFraction: 1.0}
	assert.LessOrEqual(t, quarter.OptimalFraction(0.6, 0.5), full.OptimalFraction(0.6, 0.5))
}

func TestNeverExceedsMaxFraction(t *testing.T) {
	s := &Sizer{Fraction: 1.0, MaxFraction: 0.0625}
	size := s.OptimalSize(0.99, 0.01, 1000)
	assert.LessOrEqual(t, size, 1000*0.0625+1e-9)
}

package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	uniform, err := Uniform(0, 60, 5)
	require.NoError(t, err)
	explicit, err := New([]float64{0, 60, 120, 180, 240})
	require.NoError(t, err)
	irregular, err := New([]float64{0, 10, 40, 100})
	require.NoError(t, err)

	tests := []struct {
		name      string
		tl        *Timeline
		simTime   float64
		wantFloor int
		wantFrac  float64
	}{
		{"before start", uniform, -5, 0, 0},
		{"at start", uniform, 0, 0, 0},
		{"midway", uniform, 90, 1, 0.5},
		{"on step", uniform, 120, 2, 0},
		{"at end", uniform, 240, 4, 0},
		{"after end", uniform, 1e6, 4, 0},
		{"nan", uniform, math.NaN(), 0, 0},
		{"explicit midway", explicit, 90, 1, 0.5},
		{"explicit on step", explicit, 180, 3, 0},
		{"irregular", irregular, 25, 1, 0.5},
		{"irregular late", irregular, 85, 2, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor, frac := tt.tl.Index(tt.simTime)
			assert.Equal(t, tt.wantFloor, floor)
			assert.InDelta(t, tt.wantFrac, frac, 1e-12)
			assert.GreaterOrEqual(t, frac, 0.0)
			assert.Less(t, frac, 1.0)
		})
	}
}

func TestFractionalIndexMonotonic(t *testing.T) {
	tl, err := New([]float64{0, 5, 7, 20, 21})
	require.NoError(t, err)

	prev := -1.0
	for s := -1.0; s < 25; s += 0.25 {
		fi := tl.FractionalIndex(s)
		assert.GreaterOrEqual(t, fi, prev, "at %v", s)
		prev = fi
	}
	assert.Equal(t, 4.0, tl.FractionalIndex(25))
}

func TestNewRejects(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = New([]float64{0, 10, 10})
	assert.True(t, errors.Is(err, ErrNotIncreasing))

	_, err = New([]float64{0, math.Inf(1)})
	assert.Error(t, err)

	_, err = Uniform(0, 0, 3)
	assert.True(t, errors.Is(err, ErrNotIncreasing))
}

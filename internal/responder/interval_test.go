package responder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIntervalBounds(t *testing.T) {
	seenMin, seenMax := false, false
	for range 10000 {
		ms := DefaultInterval.Next().Milliseconds()
		require.GreaterOrEqual(t, ms, int64(45000))
		require.LessOrEqual(t, ms, int64(120000))
		require.Zero(t, ms%1000, "whole seconds only")
		seenMin = seenMin || ms == 45000
		seenMax = seenMax || ms == 120000
	}
	assert.True(t, seenMin, "lower bound is inclusive")
	assert.True(t, seenMax, "upper bound is inclusive")
}

func TestIntervalFixed(t *testing.T) {
	iv := Interval{Min: 5 * time.Second, Max: 5 * time.Second}
	assert.Equal(t, 5*time.Second, iv.Next())
}

func TestIntervalValidate(t *testing.T) {
	require.NoError(t, DefaultInterval.Validate())
	require.Error(t, Interval{Min: 500 * time.Millisecond, Max: time.Second}.Validate())
	require.Error(t, Interval{Min: 2 * time.Minute, Max: time.Minute}.Validate())
}

func TestIntervalFractionalBounds(t *testing.T) {
	iv := Interval{Min: 45500 * time.Millisecond, Max: 46 * time.Second}
	require.NoError(t, iv.Validate())
	for range 100 {
		assert.Equal(t, 46*time.Second, iv.Next())
	}

	require.Error(t, Interval{Min: 45500 * time.Millisecond, Max: 45900 * time.Millisecond}.Validate())
}

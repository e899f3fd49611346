package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpeedMeter(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("first sample sets the baseline", func(t *testing.T) {
		m := newSpeedMeter(100 * time.Millisecond)

		assert.True(t, m.observe(start, 500))
		assert.Zero(t, m.current())
	})

	t.Run("samples closer than the interval are ignored", func(t *testing.T) {
		m := newSpeedMeter(100 * time.Millisecond)
		m.reset(start, 0)

		assert.False(t, m.observe(start.Add(50*time.Millisecond), 1000))
		assert.Zero(t, m.current())

		assert.True(t, m.observe(start.Add(100*time.Millisecond), 1000))
		assert.InDelta(t, 10000, m.current(), 1e-6)
	})

	t.Run("later samples are smoothed", func(t *testing.T) {
		m := newSpeedMeter(100 * time.Millisecond)
		m.reset(start, 0)

		m.observe(start.Add(time.Second), 1000)
		m.observe(start.Add(2*time.Second), 3000)

		// 0.3 * 2000 + 0.7 * 1000
		assert.InDelta(t, 1300, m.current(), 1e-6)
	})

	t.Run("offset going backwards restarts the window", func(t *testing.T) {
		m := newSpeedMeter(100 * time.Millisecond)
		m.reset(start, 0)
		m.observe(start.Add(time.Second), 1000)

		assert.True(t, m.observe(start.Add(2*time.Second), 400))
		assert.Zero(t, m.current())
	})
}

func TestAverageSpeed(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.Zero(t, averageSpeed(100, time.Time{}, start))
	assert.Zero(t, averageSpeed(100, start, start))
	assert.InDelta(t, 50, averageSpeed(100, start, start.Add(2*time.Second)), 1e-9)
}

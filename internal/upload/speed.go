package upload

import "time"

// speedSmoothing is the weight of the newest sample in the moving average
const speedSmoothing = 0.3

// speedMeter turns a stream of byte counts into a steadied bytes/second rate
type speedMeter struct {
	minInterval time.Duration

	lastAt    time.Time
	lastBytes int64
	rate      float64
}

func newSpeedMeter(minInterval time.Duration) speedMeter {
	return speedMeter{minInterval: minInterval}
}

// reset starts a new measurement window at bytes
func (m *speedMeter) reset(now time.Time, bytes int64) {
	m.lastAt = now
	m.lastBytes = bytes
	m.rate = 0
}

// observe records that bytes have been transferred by now.
// Samples closer than minInterval to the previous one are ignored; it reports whether the sample was taken.
func (m *speedMeter) observe(now time.Time, bytes int64) bool {
	if m.lastAt.IsZero() || bytes < m.lastBytes {
		m.reset(now, bytes)
		return true
	}

	elapsed := now.Sub(m.lastAt)
	if elapsed < m.minInterval {
		return false
	}

	instant := float64(bytes-m.lastBytes) / elapsed.Seconds()
	if m.rate == 0 {
		m.rate = instant
	} else {
		m.rate = speedSmoothing*instant + (1-speedSmoothing)*m.rate
	}

	m.lastAt = now
	m.lastBytes = bytes
	return true
}

func (m *speedMeter) current() float64 {
	return m.rate
}

// averageSpeed is bytes over the time since start, 0 before any time has passed
func averageSpeed(bytes int64, start, now time.Time) float64 {
	if start.IsZero() {
		return 0
	}
	elapsed := now.Sub(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed
}

package upload

import "time"

const (
	// DefaultMaxConcurrent is the process-wide number of files uploading at once
	DefaultMaxConcurrent = 8

	// DefaultChunkSize is the largest PATCH body sent per request
	DefaultChunkSize int64 = 50 * 1024 * 1024

	// DefaultMaxRetries is the number of retries per chunk after the first attempt
	DefaultMaxRetries = 3

	// DefaultReportInterval is how often aggregate progress is reported during a run
	DefaultReportInterval = 2 * time.Second

	// DefaultSpeedSampleInterval is the minimum spacing of instantaneous speed samples
	DefaultSpeedSampleInterval = 100 * time.Millisecond

	eventBufferSize = 256
)

// DefaultRetryDelays are the waits before retry 1, 2 and 3. The last entry is reused past the end.
var DefaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 10 * time.Second}

// Config holds the engine tunables. Zero values take the defaults.
type Config struct {
	MaxConcurrent int
	ChunkSize     int64

	// MaxRetries is retries per chunk; negative disables retrying
	MaxRetries int

	RetryDelays         []time.Duration
	ReportInterval      time.Duration
	SpeedSampleInterval time.Duration
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:       DefaultMaxConcurrent,
		ChunkSize:           DefaultChunkSize,
		MaxRetries:          DefaultMaxRetries,
		RetryDelays:         DefaultRetryDelays,
		ReportInterval:      DefaultReportInterval,
		SpeedSampleInterval: DefaultSpeedSampleInterval,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = d.MaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = d.RetryDelays
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = d.ReportInterval
	}
	if c.SpeedSampleInterval <= 0 {
		c.SpeedSampleInterval = d.SpeedSampleInterval
	}
	return c
}

package ui

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tcs := []struct {
		bytes    int64
		expected string
	}{
		{bytes: 0, expected: "0 B"},
		{bytes: 512, expected: "512 B"},
		{bytes: 1023, expected: "1023 B"},
		{bytes: 1024, expected: "1.0 KB"},
		{bytes: 1536, expected: "1.5 KB"},
		{bytes: 50 * 1024 * 1024, expected: "50.0 MB"},
		{bytes: 300 * 1024 * 1024, expected: "300.0 MB"},
		{bytes: 5 * 1024 * 1024 * 1024, expected: "5.0 GB"},
		{bytes: 2 * 1024 * 1024 * 1024 * 1024, expected: "2.0 TB"},
	}

	for _, tc := range tcs {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatBytes(tc.bytes))
		})
	}
}

func TestFormatSpeed(t *testing.T) {
	tcs := []struct {
		name     string
		speed    float64
		expected string
	}{
		{name: "zero", speed: 0, expected: "0 B/s"},
		{name: "nan", speed: math.NaN(), expected: "0 B/s"},
		{name: "bytes", speed: 300, expected: "300.0 B/s"},
		{name: "megabytes", speed: 12.5 * 1024 * 1024, expected: "12.5 MB/s"},
		{name: "gigabytes", speed: 1.25 * 1024 * 1024 * 1024, expected: "1.2 GB/s"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatSpeed(tc.speed))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tcs := []struct {
		d        time.Duration
		expected string
	}{
		{d: 0, expected: "--"},
		{d: 500 * time.Millisecond, expected: "< 1sec"},
		{d: time.Second, expected: "1sec"},
		{d: 45 * time.Second, expected: "45secs"},
		{d: 61 * time.Second, expected: "1min 1sec"},
		{d: 4*time.Minute + 30*time.Second, expected: "4mins 30secs"},
		{d: 5*time.Minute + 30*time.Second, expected: "5mins"},
		{d: time.Hour, expected: "1hr"},
		{d: 2*time.Hour + 5*time.Minute + 9*time.Second, expected: "2hrs 5mins"},
	}

	for _, tc := range tcs {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatDuration(tc.d))
		})
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	assert.Equal(t, "--", FormatTimeRemaining(100, 0))
	assert.Equal(t, "2secs", FormatTimeRemaining(150, 100))
	assert.Equal(t, "1min 40secs", FormatTimeRemaining(100*1024*1024, 1024*1024))
}

func TestFormatTimeOfDay(t *testing.T) {
	assert.Equal(t, "3:07 pm", FormatTimeOfDay(time.Date(2026, 3, 1, 15, 7, 0, 0, time.UTC)))
	assert.Equal(t, "9:00 am", FormatTimeOfDay(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
}

func TestColorizeStatus(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	tcs := []struct {
		status   string
		expected string
	}{
		{status: "completed", expected: "Completed"},
		{status: "uploading", expected: "Uploading"},
		{status: "paused", expected: "Paused"},
		{status: "error", expected: "Error"},
		{status: "auth_expired", expected: "Auth Expired"},
	}

	for _, tc := range tcs {
		t.Run(tc.status, func(t *testing.T) {
			assert.Equal(t, tc.expected, ColorizeStatus(tc.status))
		})
	}
}

func TestFormatError(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	assert.Empty(t, FormatError(nil))
	assert.Equal(t, "✗ Error: boom\n", FormatError(errors.New("boom")))
}

func TestExitCode(t *testing.T) {
	tcs := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: 0},
		{name: "plain", err: errors.New("boom"), expected: 1},
		{name: "cancelled", err: NewUserCancelledError(), expected: 130},
		{name: "auth", err: NewAuthError(errors.New("expired")), expected: 3},
		{name: "failed files", err: NewUploadFailedError(2, 5), expected: 2},
		{name: "validation", err: NewValidationError(errors.New("bad")), expected: 1},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExitCode(tc.err))
		})
	}

	assert.EqualError(t, NewUploadFailedError(2, 5), "2 of 5 files failed to upload")
}

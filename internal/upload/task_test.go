package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(size int64) *Task {
	return newTask("t-1", File{Path: "/media/card/A001.mov", Size: size}, DefaultSpeedSampleInterval)
}

func TestTask_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tcs := []struct {
		name     string
		prepare  func(task *Task)
		apply    func(task *Task) error
		expected Status
		wantErr  bool
	}{
		{
			name:     "pending to uploading",
			apply:    func(task *Task) error { return task.start(now) },
			expected: StatusUploading,
		},
		{
			name:     "pending cannot pause",
			apply:    func(task *Task) error { return task.pause() },
			expected: StatusPending,
			wantErr:  true,
		},
		{
			name:     "pending cannot complete",
			apply:    func(task *Task) error { return task.complete(now) },
			expected: StatusPending,
			wantErr:  true,
		},
		{
			name:     "uploading to paused",
			prepare:  func(task *Task) { _ = task.start(now) },
			apply:    func(task *Task) error { return task.pause() },
			expected: StatusPaused,
		},
		{
			name: "paused to uploading",
			prepare: func(task *Task) {
				_ = task.start(now)
				_ = task.pause()
			},
			apply:    func(task *Task) error { return task.start(now) },
			expected: StatusUploading,
		},
		{
			name:     "uploading to error",
			prepare:  func(task *Task) { _ = task.start(now) },
			apply:    func(task *Task) error { return task.fail("boom") },
			expected: StatusError,
		},
		{
			name: "error to pending",
			prepare: func(task *Task) {
				_ = task.start(now)
				_ = task.fail("boom")
			},
			apply:    func(task *Task) error { return task.retry() },
			expected: StatusPending,
		},
		{
			name: "error cannot start directly",
			prepare: func(task *Task) {
				_ = task.start(now)
				_ = task.fail("boom")
			},
			apply:    func(task *Task) error { return task.start(now) },
			expected: StatusError,
			wantErr:  true,
		},
		{
			name:     "uploading cannot complete short of size",
			prepare:  func(task *Task) { _ = task.start(now) },
			apply:    func(task *Task) error { return task.complete(now) },
			expected: StatusUploading,
			wantErr:  true,
		},
		{
			name: "uploading to completed at size",
			prepare: func(task *Task) {
				_ = task.start(now)
				_ = task.confirm(100, now)
			},
			apply:    func(task *Task) error { return task.complete(now) },
			expected: StatusCompleted,
		},
		{
			name: "completed is terminal",
			prepare: func(task *Task) {
				_ = task.start(now)
				_ = task.confirm(100, now)
				_ = task.complete(now)
			},
			apply:    func(task *Task) error { return task.start(now) },
			expected: StatusCompleted,
			wantErr:  true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			task := newTestTask(100)
			if tc.prepare != nil {
				tc.prepare(task)
			}

			err := tc.apply(task)

			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expected, task.Status())
		})
	}
}

func TestTask_Offset(t *testing.T) {
	now := time.Now()

	t.Run("rejects offsets outside the file", func(t *testing.T) {
		task := newTestTask(100)
		require.NoError(t, task.start(now))

		require.Error(t, task.confirm(-1, now))
		require.Error(t, task.confirm(101, now))
		require.NoError(t, task.confirm(100, now))
	})

	t.Run("in-flight bytes are clamped and dropped on pause", func(t *testing.T) {
		task := newTestTask(100)
		require.NoError(t, task.start(now))
		require.NoError(t, task.confirm(40, now))

		task.transferred(500, now.Add(time.Second))
		snap := task.Snapshot(now)
		assert.Equal(t, int64(40), snap.Offset)
		assert.Equal(t, int64(100), snap.Uploaded)

		require.NoError(t, task.pause())
		snap = task.Snapshot(now)
		assert.Equal(t, int64(40), snap.Offset)
		assert.Equal(t, int64(40), snap.Uploaded)
		assert.Zero(t, snap.Speed)
	})

	t.Run("session is assigned once", func(t *testing.T) {
		task := newTestTask(100)

		require.ErrorIs(t, task.setSession("https://u/1"), ErrInvalidTransition)
		require.NoError(t, task.start(now))
		require.NoError(t, task.setSession("https://u/1"))
		require.ErrorIs(t, task.setSession("https://u/2"), ErrInvalidTransition)
	})

	t.Run("retry clears progress and session", func(t *testing.T) {
		task := newTestTask(100)
		require.NoError(t, task.start(now))
		require.NoError(t, task.setSession("https://u/1"))
		require.NoError(t, task.confirm(60, now))
		task.noteRetry()
		require.NoError(t, task.fail("Network unreachable"))

		require.NoError(t, task.retry())

		snap := task.Snapshot(now)
		assert.Equal(t, StatusPending, snap.Status)
		assert.Zero(t, snap.Offset)
		assert.Empty(t, snap.SessionURL)
		assert.Empty(t, snap.Error)
		assert.Zero(t, snap.RetryCount)
		assert.True(t, snap.StartedAt.IsZero())
	})
}

func TestSnapshot_Progress(t *testing.T) {
	tcs := []struct {
		name     string
		snap     Snapshot
		expected float64
	}{
		{name: "empty pending file", snap: Snapshot{Size: 0, Status: StatusPending}, expected: 0},
		{name: "empty completed file", snap: Snapshot{Size: 0, Status: StatusCompleted}, expected: 1},
		{name: "half", snap: Snapshot{Size: 200, Uploaded: 100}, expected: 0.5},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.snap.Progress(), 1e-9)
		})
	}
}

func TestTask_Defaults(t *testing.T) {
	metadata := map[string]string{"crewName": "A Unit"}
	task := newTask("t-1", File{Path: "/media/card/A001.mov", Size: 1, Metadata: metadata}, DefaultSpeedSampleInterval)
	metadata["crewName"] = "changed"

	file := task.File()
	assert.Equal(t, "A001.mov", file.Name)
	assert.Equal(t, "A Unit", file.Metadata["crewName"])
}

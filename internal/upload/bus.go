package upload

import (
	"context"
	"time"
)

// Report aggregates the progress of every task the bus knows about
type Report struct {
	At       time.Time
	Uploaded int64
	Total    int64

	// Speed is the summed instantaneous speed of uploading tasks in bytes/second
	Speed float64

	// Percent is Uploaded/Total in [0, 100]; 0 when nothing is declared
	Percent float64

	Pending   int
	Uploading int
	Paused    int
	Completed int
	Failed    int

	// ETA is zero when the speed is unknown
	ETA time.Duration

	// Final is set on the report emitted when a run settles; Batch is set with it
	Final bool
	Batch *BatchRecord
}

// BatchRecord summarizes one settled run
type BatchRecord struct {
	Number      int
	StartedAt   time.Time
	CompletedAt time.Time
	Files       int
	Completed   int
	Failed      int
	Bytes       int64
}

// Listener receives forwarded events and reports from the bus goroutine
type Listener interface {
	OnEvent(ev Event)
	OnReport(r Report)
}

// Bus is the single consumer of the scheduler's events
type Bus struct {
	interval time.Duration
	listener Listener
	now      func() time.Time

	tasks map[string]Snapshot
	order []string

	batches int
	batch   *batchState
	ticker  *time.Ticker
}

type batchState struct {
	startedAt time.Time
	ids       map[string]struct{}
}

// NewBus creates a bus that reports every interval while tasks are uploading
func NewBus(interval time.Duration, listener Listener) *Bus {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Bus{
		interval: interval,
		listener: listener,
		now:      time.Now,
		tasks:    make(map[string]Snapshot),
	}
}

// Run consumes events until ctx is done or events is closed
func (b *Bus) Run(ctx context.Context, events <-chan Event) error {
	defer b.stopTicker()

	for {
		var tick <-chan time.Time
		if b.ticker != nil {
			tick = b.ticker.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.handle(ev)

		case <-tick:
			b.report()
		}
	}
}

func (b *Bus) handle(ev Event) {
	if ev.Type == EventRemoved {
		delete(b.tasks, ev.TaskID)
		for i, id := range b.order {
			if id == ev.TaskID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	} else if ev.Type != EventAuthExpired {
		if _, ok := b.tasks[ev.TaskID]; !ok {
			b.order = append(b.order, ev.TaskID)
		}
		b.tasks[ev.TaskID] = ev.Task
	}

	if ev.Type == EventStarted {
		if b.batch == nil {
			b.batch = &batchState{startedAt: ev.At, ids: make(map[string]struct{})}
		}
		b.batch.ids[ev.TaskID] = struct{}{}
		if b.ticker == nil {
			b.ticker = time.NewTicker(b.interval)
		}
	}

	if b.listener != nil {
		b.listener.OnEvent(ev)
	}

	if !ev.significant() {
		return
	}

	counts := b.aggregate()
	switch {
	case b.batch != nil && counts.Uploading == 0 && counts.Pending == 0 && counts.Paused == 0:
		b.settle()
	case counts.Uploading == 0:
		b.stopTicker()
		b.report()
	default:
		b.report()
	}
}

// settle emits the final report of the current batch and stops periodic reports
func (b *Bus) settle() {
	b.stopTicker()

	r := b.aggregate()
	record := &BatchRecord{
		StartedAt:   b.batch.startedAt,
		CompletedAt: r.At,
	}
	for id := range b.batch.ids {
		snap, ok := b.tasks[id]
		if !ok {
			continue
		}
		record.Files++
		record.Bytes += snap.Uploaded
		switch snap.Status {
		case StatusCompleted:
			record.Completed++
		case StatusError:
			record.Failed++
		}
	}
	b.batch = nil

	// Everything in the run was removed before it settled
	if record.Files == 0 {
		if b.listener != nil {
			b.listener.OnReport(r)
		}
		return
	}

	b.batches++
	record.Number = b.batches
	r.Final = true
	r.Batch = record
	if b.listener != nil {
		b.listener.OnReport(r)
	}
}

func (b *Bus) report() {
	r := b.aggregate()
	if b.listener != nil {
		b.listener.OnReport(r)
	}
}

func (b *Bus) aggregate() Report {
	r := Report{At: b.now()}

	for _, id := range b.order {
		snap := b.tasks[id]
		r.Total += snap.Size

		switch snap.Status {
		case StatusCompleted:
			r.Uploaded += snap.Size
			r.Completed++
		case StatusUploading:
			r.Uploaded += snap.Uploaded
			r.Speed += snap.Speed
			r.Uploading++
		case StatusPaused:
			r.Uploaded += snap.Uploaded
			r.Paused++
		case StatusError:
			r.Uploaded += snap.Uploaded
			r.Failed++
		default:
			r.Pending++
		}
	}

	if r.Total > 0 {
		r.Percent = float64(r.Uploaded) / float64(r.Total) * 100
	}
	if r.Speed > 0 && r.Total > r.Uploaded {
		r.ETA = time.Duration(float64(r.Total-r.Uploaded) / r.Speed * float64(time.Second))
	}
	return r
}

func (b *Bus) stopTicker() {
	if b.ticker != nil {
		b.ticker.Stop()
		b.ticker = nil
	}
}

package upload

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turbo360/crewupload/internal/tus"
	"github.com/turbo360/crewupload/internal/tus/tustest"
)

// fakeTransfer is an in-memory Transfer with scripted failures
type fakeTransfer struct {
	mu          sync.Mutex
	sizes       map[string]int64
	offsets     map[string]int64
	creates     int
	queries     int
	sends       int
	sentOffsets []int64
	inFlight    int
	maxInFlight int

	// Scripted results consumed one per call; a nil entry means the call behaves normally
	createErrs []error
	queryErrs  []error
	sendErrs   []error

	// queryOffsets replace the stored offset on the next queries
	queryOffsets []int64

	// sendOffsets replace the offset reported by the next successful sends; a negative entry leaves the send untouched
	sendOffsets []int64

	// gate blocks every SendChunk until a value is received or the context is done
	gate chan struct{}
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{
		sizes:   make(map[string]int64),
		offsets: make(map[string]int64),
	}
}

func pop[T any](items *[]T) (T, bool) {
	var zero T
	if len(*items) == 0 {
		return zero, false
	}
	item := (*items)[0]
	*items = (*items)[1:]
	return item, true
}

func (f *fakeTransfer) CreateSession(_ context.Context, size int64, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	if err, ok := pop(&f.createErrs); ok && err != nil {
		return "", err
	}

	sessionURL := fmt.Sprintf("https://upload.test/files/%d", f.creates)
	f.sizes[sessionURL] = size
	f.offsets[sessionURL] = 0
	return sessionURL, nil
}

func (f *fakeTransfer) QueryOffset(_ context.Context, sessionURL string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if err, ok := pop(&f.queryErrs); ok && err != nil {
		return 0, err
	}
	if offset, ok := pop(&f.queryOffsets); ok {
		f.offsets[sessionURL] = offset
	}
	return f.offsets[sessionURL], nil
}

func (f *fakeTransfer) SendChunk(ctx context.Context, req tus.ChunkRequest) (int64, error) {
	f.mu.Lock()
	f.sends++
	f.sentOffsets = append(f.sentOffsets, req.Offset)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	gate := f.gate
	scripted, _ := pop(&f.sendErrs)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, fmt.Errorf("send chunk: %w", tus.ErrAborted)
		}
	}
	if scripted != nil {
		return 0, scripted
	}

	f.mu.Lock()
	if req.Offset != f.offsets[req.SessionURL] {
		f.mu.Unlock()
		return 0, &tus.ProtocolError{Op: "send chunk", StatusCode: http.StatusConflict}
	}
	if reported, ok := pop(&f.sendOffsets); ok && reported >= 0 {
		f.offsets[req.SessionURL] = reported
		f.mu.Unlock()
		return reported, nil
	}
	n := min(req.MaxBytes, req.Size-req.Offset)
	f.offsets[req.SessionURL] = req.Offset + n
	f.mu.Unlock()

	if req.OnProgress != nil {
		req.OnProgress(n)
	}
	return req.Offset + n, nil
}

func (f *fakeTransfer) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeTransfer) stats() (creates, queries, sends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.queries, f.sends
}

func (f *fakeTransfer) inFlightNow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

type fixedToken string

func (f fixedToken) Token(context.Context) (string, error) {
	return string(f), nil
}

// stallingHTTP holds the next stalls PATCH requests until their deadline passes
type stallingHTTP struct {
	mu     sync.Mutex
	stalls int
}

func (s *stallingHTTP) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	stall := req.Method == http.MethodPatch && s.stalls > 0
	if stall {
		s.stalls--
	}
	s.mu.Unlock()

	if stall {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	return http.DefaultClient.Do(req)
}

// newClientFixture runs the scheduler against a real client whose first stalls chunks time out
func newClientFixture(t *testing.T, cfg Config, stalls int) (*schedulerFixture, *tustest.Server) {
	t.Helper()

	server := tustest.NewServer(t, "tok-1")
	client, err := tus.NewClient(tus.Config{
		Endpoint:       server.Endpoint(),
		Tokens:         fixedToken("tok-1"),
		HTTPClient:     &stallingHTTP{stalls: stalls},
		RequestTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	fx := &schedulerFixture{timer: &fakeTimer{}, auth: &fakeAuth{}}
	s, err := NewScheduler(Options{
		Config:   cfg,
		Transfer: client,
		Auth:     fx.auth,
		Timer:    fx.timer,
	})
	require.NoError(t, err)

	fx.scheduler = s
	fx.events = record(t, s)
	return fx, server
}

// fakeTimer records every retry delay and fires immediately
type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (f *fakeTimer) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

type fakeAuth struct {
	mu            sync.Mutex
	invalidations int
}

func (f *fakeAuth) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}

func (f *fakeAuth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidations
}

// recorder drains a scheduler's events for the lifetime of a test
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(t *testing.T, s *Scheduler) *recorder {
	t.Helper()

	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev := <-s.Events():
				r.mu.Lock()
				r.events = append(r.events, ev)
				r.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	t.Cleanup(func() {
		s.Close()
		cancel()
		<-done
	})
	return r
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(eventType EventType) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type schedulerFixture struct {
	scheduler *Scheduler
	transfer  *fakeTransfer
	timer     *fakeTimer
	auth      *fakeAuth
	events    *recorder
}

func newFixture(t *testing.T, cfg Config) *schedulerFixture {
	t.Helper()

	fx := &schedulerFixture{
		transfer: newFakeTransfer(),
		timer:    &fakeTimer{},
		auth:     &fakeAuth{},
	}

	s, err := NewScheduler(Options{
		Config:   cfg,
		Transfer: fx.transfer,
		Auth:     fx.auth,
		Timer:    fx.timer,
	})
	require.NoError(t, err)

	fx.scheduler = s
	fx.events = record(t, s)
	return fx
}

func (fx *schedulerFixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, fx.scheduler.Wait(ctx))
}

func (fx *schedulerFixture) counts() map[Status]int {
	counts := make(map[Status]int)
	for _, snap := range fx.scheduler.Tasks() {
		counts[snap.Status]++
	}
	return counts
}

// writeFile creates a file of size bytes; large files are sparse
func writeFile(t *testing.T, dir, name string, size int64) File {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	return File{Path: path, Size: size, ContentType: "application/octet-stream"}
}

func writeFiles(t *testing.T, n int, size int64) []File {
	t.Helper()

	dir := t.TempDir()
	files := make([]File, 0, n)
	for i := range n {
		files = append(files, writeFile(t, dir, fmt.Sprintf("clip_%02d.mov", i), size))
	}
	return files
}

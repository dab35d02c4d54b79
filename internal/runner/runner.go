package runner

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rumble-backup/pkg/models"
)

// ErrRunActive is returned when a start is attempted while a run is already
// in flight. Requests are rejected, never queued.
var ErrRunActive = errors.New("a backup run is already active")

// ErrClosed is returned when the runner has been shut down.
var ErrClosed = errors.New("runner is closed")

// Request describes one backup run.
type Request struct {
	Channels []string
	Options  models.BackupOptions
}

// BackupFunc executes a backup run across the given channels.
type BackupFunc func(ctx context.Context, channels []string, opts models.BackupOptions) (*models.RunTotals, error)

// Recorder observes run lifecycle transitions. Implemented by the metrics
// bundle; nil disables recording.
type Recorder interface {
	RecordRunStarted()
	RecordRunFinished()
}

// Runner serializes backup runs: one in flight at a time, fire-and-forget.
// The state machine is Idle -> Running -> Idle, guarded by the mutex; the
// control surface only observes it through Status.
type Runner struct {
	backup  BackupFunc
	metrics Recorder
	logger  zerolog.Logger

	mu        sync.Mutex
	closed    bool
	running   bool
	channel   string
	startedAt *time.Time
	lastRun   *time.Time
	lastError string

	requests chan Request
	wg       sync.WaitGroup
}

// New creates a runner and starts its worker goroutine.
func New(backup BackupFunc, metrics Recorder) *Runner {
	r := &Runner{
		backup:   backup,
		metrics:  metrics,
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "runner").Logger(),
		requests: make(chan Request, 1),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// TryStart claims the runner for one run. While a run is active it fails
// with ErrRunActive.
func (r *Runner) TryStart(req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.running {
		return ErrRunActive
	}

	r.running = true
	now := time.Now().UTC()
	r.startedAt = &now
	r.channel = runLabel(req.Channels)
	r.lastError = ""

	// The channel is buffered for exactly one request and the running flag
	// guarantees the slot is free, so this never blocks under the lock.
	r.requests <- req

	if r.metrics != nil {
		r.metrics.RecordRunStarted()
	}
	r.logger.Info().Str("channels", r.channel).Msg("Backup run started")
	return nil
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status returns a read-only snapshot for the control surface.
func (r *Runner) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := models.RunStatus{
		Running:   r.running,
		LastError: r.lastError,
	}
	if r.running {
		status.Channel = r.channel
		status.StartedAt = r.startedAt
	}
	if r.lastRun != nil {
		t := *r.lastRun
		status.LastRun = &t
	}
	return status
}

// Close stops accepting runs and waits for the in-flight one to complete.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.requests)
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for req := range r.requests {
		totals, err := r.backup(context.Background(), req.Channels, req.Options)
		r.finish(totals, err)
	}
}

// finish flips the state machine back to Idle and records the outcome.
func (r *Runner) finish(totals *models.RunTotals, err error) {
	r.mu.Lock()
	now := time.Now().UTC()
	r.running = false
	r.channel = ""
	r.startedAt = nil
	r.lastRun = &now
	if err != nil {
		r.lastError = err.Error()
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordRunFinished()
	}

	if err != nil {
		r.logger.Error().Err(err).Msg("Backup run failed")
		return
	}
	if totals != nil {
		r.logger.Info().
			Int("channels", totals.Channels).
			Int("downloaded", totals.VideosDownloaded).
			Int("skipped", totals.VideosSkipped).
			Int("failed", totals.VideosFailed).
			Msg("Backup run finished")
	}
}

func runLabel(channels []string) string {
	if len(channels) == 0 {
		return "all"
	}
	return strings.Join(channels, ",")
}

// Package telemetry maintains the robot's last-known status snapshot and
// republishes it upstream, both on a fixed interval and immediately when the
// status changes. The transport is decoupled from the control loop by the
// snapshot cache: setters never block, and a slow broker only delays
// publication, never the mission.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

// Snapshot is the last-known robot status. Optional fields are nil until a
// reading has been observed.
type Snapshot struct {
	RobotID string
	Status  types.RobotStatus
	Lat     *float64
	Lon     *float64
	Battery *int
	JobID   *int64
}

// Completion is one job outcome report.
type Completion struct {
	RobotID string
	JobID   int64
	Success bool
	Message string
}

// Publisher sends snapshots and completions upstream. Implementations should
// return quickly; delivery may be asynchronous.
type Publisher interface {
	PublishStatus(ctx context.Context, snap Snapshot) error
	PublishCompletion(ctx context.Context, c Completion) error
}

// Reporter is the status reporting loop. Setters update the cached snapshot
// and edge-trigger a publish; an interval ticker republishes the latest
// snapshot regardless, so upstream always has a recent heartbeat.
type Reporter struct {
	cfg     config.TelemetryConfig
	robotID string
	pub     Publisher
	logger  *slog.Logger

	mu   sync.Mutex
	snap Snapshot

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReporter creates a stopped reporter with an idle snapshot.
func NewReporter(cfg config.TelemetryConfig, robotID string, pub Publisher, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		cfg:     cfg,
		robotID: robotID,
		pub:     pub,
		logger:  logger.With("component", "telemetry"),
		snap:    Snapshot{RobotID: robotID, Status: types.StatusIdle},
		kick:    make(chan struct{}, 1),
	}
}

// Start launches the reporting loop. It runs until ctx is cancelled or Stop
// is called.
func (r *Reporter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
	r.logger.Info("status reporter started", "interval", r.cfg.ReportInterval)
}

// Stop halts the reporting loop and waits for it to exit.
func (r *Reporter) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// SetStatus updates the cached status and triggers an immediate publish.
func (r *Reporter) SetStatus(status types.RobotStatus) {
	r.mu.Lock()
	changed := r.snap.Status != status
	r.snap.Status = status
	r.mu.Unlock()

	if changed {
		r.trigger()
	}
}

// SetPosition updates the cached position.
func (r *Reporter) SetPosition(lat, lon float64) {
	r.mu.Lock()
	r.snap.Lat = &lat
	r.snap.Lon = &lon
	r.mu.Unlock()
}

// SetBattery updates the cached power level.
func (r *Reporter) SetBattery(percent int) {
	r.mu.Lock()
	r.snap.Battery = &percent
	r.mu.Unlock()
}

// SetJob updates the job the robot is working; nil clears it.
func (r *Reporter) SetJob(jobID *int64) {
	r.mu.Lock()
	r.snap.JobID = jobID
	r.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// PublishCompletion sends one job outcome report upstream.
func (r *Reporter) PublishCompletion(jobID int64, success bool, message string) {
	c := Completion{
		RobotID: r.robotID,
		JobID:   jobID,
		Success: success,
		Message: message,
	}
	if err := r.pub.PublishCompletion(context.Background(), c); err != nil {
		r.logger.Error("publishing completion", "job_id", jobID, "error", err)
	}
}

// trigger requests an immediate publish without blocking. A pending trigger
// coalesces with this one.
func (r *Reporter) trigger() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Reporter) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publish(ctx)
		case <-r.kick:
			r.publish(ctx)
		}
	}
}

func (r *Reporter) publish(ctx context.Context) {
	snap := r.Snapshot()
	if err := r.pub.PublishStatus(ctx, snap); err != nil {
		r.logger.Error("publishing status", "error", err)
	}
}

package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type capturePublisher struct {
	mu          sync.Mutex
	statuses    []Snapshot
	completions []Completion
}

func (p *capturePublisher) PublishStatus(ctx context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, snap)
	return nil
}

func (p *capturePublisher) PublishCompletion(ctx context.Context, c Completion) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completions = append(p.completions, c)
	return nil
}

func (p *capturePublisher) statusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

func (p *capturePublisher) lastStatus() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return Snapshot{}, false
	}
	return p.statuses[len(p.statuses)-1], true
}

func TestReporter_PeriodicPublish(t *testing.T) {
	pub := &capturePublisher{}
	r := NewReporter(config.TelemetryConfig{ReportInterval: 10 * time.Millisecond}, "robot_001", pub, nil)

	r.Start(context.Background())
	defer r.Stop()

	assert.Eventually(t, func() bool {
		return pub.statusCount() >= 2
	}, time.Second, 5*time.Millisecond)

	snap, ok := pub.lastStatus()
	require.True(t, ok)
	assert.Equal(t, "robot_001", snap.RobotID)
	assert.Equal(t, types.StatusIdle, snap.Status)
}

func TestReporter_EdgeTriggeredOnStatusChange(t *testing.T) {
	pub := &capturePublisher{}
	// Interval far beyond the test horizon: only the edge trigger can fire.
	r := NewReporter(config.TelemetryConfig{ReportInterval: time.Hour}, "robot_001", pub, nil)

	r.Start(context.Background())
	defer r.Stop()

	r.SetStatus(types.StatusMoving)

	assert.Eventually(t, func() bool {
		snap, ok := pub.lastStatus()
		return ok && snap.Status == types.StatusMoving
	}, time.Second, 5*time.Millisecond)
}

func TestReporter_UnchangedStatusDoesNotTrigger(t *testing.T) {
	pub := &capturePublisher{}
	r := NewReporter(config.TelemetryConfig{ReportInterval: time.Hour}, "robot_001", pub, nil)

	r.Start(context.Background())
	defer r.Stop()

	r.SetStatus(types.StatusIdle) // already idle

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, pub.statusCount())
}

func TestReporter_SnapshotCarriesLatestReadings(t *testing.T) {
	pub := &capturePublisher{}
	r := NewReporter(config.TelemetryConfig{ReportInterval: time.Hour}, "robot_001", pub, nil)

	jobID := int64(7)
	r.SetPosition(1.3521, 103.8198)
	r.SetBattery(85)
	r.SetJob(&jobID)

	snap := r.Snapshot()
	require.NotNil(t, snap.Lat)
	assert.Equal(t, 1.3521, *snap.Lat)
	require.NotNil(t, snap.Battery)
	assert.Equal(t, 85, *snap.Battery)
	require.NotNil(t, snap.JobID)
	assert.Equal(t, int64(7), *snap.JobID)
}

func TestReporter_PublishCompletion(t *testing.T) {
	pub := &capturePublisher{}
	r := NewReporter(config.TelemetryConfig{ReportInterval: time.Hour}, "robot_001", pub, nil)

	r.PublishCompletion(7, true, "marking painted in 42s")

	require.Len(t, pub.completions, 1)
	c := pub.completions[0]
	assert.Equal(t, "robot_001", c.RobotID)
	assert.Equal(t, int64(7), c.JobID)
	assert.True(t, c.Success)
}

func TestReporter_StopIsIdempotentWhenNeverStarted(t *testing.T) {
	r := NewReporter(config.TelemetryConfig{ReportInterval: time.Hour}, "robot_001", &capturePublisher{}, nil)
	r.Stop()
}

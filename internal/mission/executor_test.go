package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tbala-06/GIQ-2025/internal/actuator"
	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/nav"
	"github.com/Tbala-06/GIQ-2025/internal/state"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

type fakeActuator struct {
	calls []string
	fail  map[string]error

	// onDispense, when set, runs before the dispense is recorded, letting a
	// test interleave work mid paint sequence.
	onDispense func()
}

func (f *fakeActuator) note(verb, detail string) error {
	f.calls = append(f.calls, detail)
	return f.fail[verb]
}

func (f *fakeActuator) MoveForward(ctx context.Context, cm float64, speed int) (actuator.Encoders, error) {
	return actuator.Encoders{}, f.note("MOVE_FORWARD", fmt.Sprintf("MOVE_FORWARD %.0f", cm))
}

func (f *fakeActuator) Rotate(ctx context.Context, deg float64, speed int) (actuator.Encoders, error) {
	return actuator.Encoders{}, f.note("ROTATE", fmt.Sprintf("ROTATE %.0f", deg))
}

func (f *fakeActuator) Stop(ctx context.Context) error {
	return f.note("STOP", "STOP")
}

func (f *fakeActuator) LowerStencil(ctx context.Context) error {
	return f.note("LOWER_STENCIL", "LOWER_STENCIL")
}

func (f *fakeActuator) RaiseStencil(ctx context.Context) error {
	return f.note("RAISE_STENCIL", "RAISE_STENCIL")
}

func (f *fakeActuator) DispensePaint(ctx context.Context, deg float64) error {
	if f.onDispense != nil {
		f.onDispense()
	}
	return f.note("DISPENSE_PAINT", "DISPENSE_PAINT")
}

type stubPos struct {
	lat, lon float64
	heading  float64
	bearing  float64
	distance float64
	lost     bool
}

func (s *stubPos) CurrentPosition(ctx context.Context) (nav.Position, bool) {
	if s.lost {
		return nav.Position{}, false
	}
	return nav.Position{Lat: s.lat, Lon: s.lon}, true
}

func (s *stubPos) CurrentHeading(ctx context.Context) (float64, bool) {
	if s.lost {
		return 0, false
	}
	return s.heading, true
}

func (s *stubPos) BearingAndDistanceTo(ctx context.Context, lat, lon float64) (float64, float64, bool) {
	if s.lost {
		return 0, 0, false
	}
	return s.bearing, s.distance, true
}

type completionMsg struct {
	jobID   int64
	success bool
	message string
}

type recordingSink struct {
	statuses    []string
	completions []completionMsg
}

func (r *recordingSink) SetStatus(status types.RobotStatus) {
	r.statuses = append(r.statuses, status.String())
}

func (r *recordingSink) SetJob(jobID *int64) {}

func (r *recordingSink) PublishCompletion(jobID int64, success bool, message string) {
	r.completions = append(r.completions, completionMsg{jobID, success, message})
}

type memHistory struct {
	entries []HistoryEntry
}

func (h *memHistory) Record(ctx context.Context, entry HistoryEntry) error {
	h.entries = append(h.entries, entry)
	return nil
}

type harness struct {
	exec    *Executor
	machine *state.Machine
	act     *fakeActuator
	pos     *stubPos
	roads   *nav.FixedRoadFinder
	aligner *nav.ScriptedAligner
	sink    *recordingSink
	history *memHistory
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Mission.StencilSettle = 0
	cfg.Mission.DispenseDuration = 0
	cfg.Navigation.MaxFixMisses = 2
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	h := &harness{
		machine: state.NewMachine(nil),
		act:     &fakeActuator{fail: map[string]error{}},
		// Arrived and already facing perpendicular to a road bearing of 0.
		pos:     &stubPos{lat: 1.3521, lon: 103.8198, heading: 90, distance: 0.3},
		roads:   &nav.FixedRoadFinder{Road: nav.Road{Bearing: 0, Distance: 1}, Found: true},
		aligner: &nav.ScriptedAligner{},
		sink:    &recordingSink{},
		history: &memHistory{},
	}
	h.exec = NewExecutor(cfg, h.machine, h.act, h.pos, h.roads, h.aligner, h.sink, h.history, nil)
	return h
}

func testOrder() Order {
	return Order{JobID: 7, Latitude: 1.3521, Longitude: 103.8198}
}

func TestExecutor_ArrivalOnFirstStep(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	assert.Equal(t, state.Moving, h.machine.Current())

	// Distance 0.3m is below the 0.5m arrival tolerance.
	h.exec.Step(ctx)

	m, ok := h.exec.Current()
	require.True(t, ok)
	assert.Equal(t, StepPositioning, m.Step)
	assert.Equal(t, state.Positioning, h.machine.Current())
	assert.Empty(t, h.act.calls, "no movement needed when already at target")
}

func TestExecutor_FullMission(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))

	for i := 0; i < 20 && h.exec.Active(); i++ {
		h.exec.Step(ctx)
	}

	require.False(t, h.exec.Active(), "mission should have completed")
	assert.Equal(t, state.Idle, h.machine.Current())

	require.Len(t, h.sink.completions, 1)
	done := h.sink.completions[0]
	assert.Equal(t, int64(7), done.jobID)
	assert.True(t, done.success)

	// Paint sequence order, with no lateral move in between.
	assert.Equal(t, []string{"LOWER_STENCIL", "DISPENSE_PAINT", "RAISE_STENCIL"}, h.act.calls)

	require.Len(t, h.history.entries, 1)
	assert.True(t, h.history.entries[0].Success)
	assert.Equal(t, int64(7), h.history.entries[0].JobID)
}

func TestExecutor_HeadingCorrectedBeforeAdvance(t *testing.T) {
	h := newHarness(t, testConfig())
	h.pos.distance = 10
	h.pos.bearing = 80
	h.pos.heading = 0
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))

	// Heading error 80° exceeds the 10° threshold: rotate only this tick.
	h.exec.Step(ctx)
	assert.Equal(t, []string{"ROTATE 80"}, h.act.calls)

	// Now on-bearing: advance one bounded increment, no rotation.
	h.pos.heading = 80
	h.exec.Step(ctx)
	assert.Equal(t, []string{"ROTATE 80", "MOVE_FORWARD 100"}, h.act.calls)
}

func TestExecutor_NoRoadFound(t *testing.T) {
	h := newHarness(t, testConfig())
	h.roads.Found = false
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	h.exec.Step(ctx) // arrive
	h.exec.Step(ctx) // road lookup fails

	assert.False(t, h.exec.Active())
	assert.Equal(t, state.Idle, h.machine.Current())

	require.Len(t, h.sink.completions, 1)
	fail := h.sink.completions[0]
	assert.Equal(t, int64(7), fail.jobID)
	assert.False(t, fail.success)
	assert.Contains(t, fail.message, "no road found")
}

func TestExecutor_AlignmentCorrections(t *testing.T) {
	h := newHarness(t, testConfig())
	h.aligner.Rounds = 1
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	h.exec.Step(ctx) // arrive
	h.exec.Step(ctx) // find road
	h.exec.Step(ctx) // positioned -> painting

	// First alignment check says LEFT: lateral shuffle, no painting yet.
	h.exec.Step(ctx)
	assert.Equal(t, []string{"ROTATE -90", "MOVE_FORWARD 4", "ROTATE 90"}, h.act.calls)

	// Second check is aligned: the paint sequence follows.
	h.exec.Step(ctx)
	assert.Equal(t, []string{
		"ROTATE -90", "MOVE_FORWARD 4", "ROTATE 90",
		"LOWER_STENCIL", "DISPENSE_PAINT", "RAISE_STENCIL",
	}, h.act.calls)
}

func TestExecutor_AlignmentExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Mission.MaxAlignmentAttempts = 2
	h := newHarness(t, cfg)
	h.aligner.Rounds = 100
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	for i := 0; i < 10 && h.exec.Active(); i++ {
		h.exec.Step(ctx)
	}

	assert.False(t, h.exec.Active())
	require.Len(t, h.sink.completions, 1)
	assert.False(t, h.sink.completions[0].success)
	assert.Contains(t, h.sink.completions[0].message, "not aligned after 2 attempts")
}

func TestExecutor_MissionDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Mission.MaxDuration = time.Millisecond
	h := newHarness(t, cfg)
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	time.Sleep(5 * time.Millisecond)
	h.exec.Step(ctx)

	assert.False(t, h.exec.Active())
	assert.Equal(t, state.Idle, h.machine.Current())
	require.Len(t, h.sink.completions, 1)
	assert.Contains(t, h.sink.completions[0].message, "duration budget exceeded")
}

func TestExecutor_NavigationDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Mission.NavigationFraction = 0.000001
	h := newHarness(t, cfg)
	h.pos.distance = 10
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	time.Sleep(time.Millisecond)
	h.exec.Step(ctx)

	assert.False(t, h.exec.Active())
	require.Len(t, h.sink.completions, 1)
	assert.Contains(t, h.sink.completions[0].message, "navigation deadline")
}

func TestExecutor_LostFix(t *testing.T) {
	h := newHarness(t, testConfig())
	h.pos.lost = true
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))

	h.exec.Step(ctx)
	assert.True(t, h.exec.Active(), "one missed fix is tolerated")

	h.exec.Step(ctx)
	assert.False(t, h.exec.Active())
	require.Len(t, h.sink.completions, 1)
	assert.Contains(t, h.sink.completions[0].message, "position fix lost")
}

func TestExecutor_ActuationFailureAborts(t *testing.T) {
	h := newHarness(t, testConfig())
	h.pos.distance = 10
	h.pos.bearing = 0
	h.pos.heading = 0
	h.act.fail["MOVE_FORWARD"] = errors.New("motor stalled")
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	h.exec.Step(ctx)

	assert.False(t, h.exec.Active())
	require.Len(t, h.sink.completions, 1)
	assert.Contains(t, h.sink.completions[0].message, "motor stalled")
	// Abort always stops the motors and homes the stencil.
	assert.Contains(t, h.act.calls, "STOP")
	assert.Contains(t, h.act.calls, "RAISE_STENCIL")
}

func TestExecutor_SupersedeAbortsPriorOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	require.NoError(t, h.exec.Start(ctx, Order{JobID: 8, Latitude: 1.36, Longitude: 103.82}))

	require.Len(t, h.sink.completions, 1, "exactly one failure report for the superseded mission")
	first := h.sink.completions[0]
	assert.Equal(t, int64(7), first.jobID)
	assert.False(t, first.success)
	assert.Contains(t, strings.ToLower(first.message), "superseded")

	m, ok := h.exec.Current()
	require.True(t, ok)
	assert.Equal(t, int64(8), m.JobID)
	assert.Equal(t, state.Moving, h.machine.Current())
}

func TestExecutor_AbortDuringPaintSequenceStaysAborted(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	// Abort lands mid paint sequence, as the safety poller does from its
	// own goroutine.
	h.act.onDispense = func() { h.exec.Abort(ctx, "safety: power at 5%, minimum 20%") }

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	h.exec.Step(ctx) // arrive
	h.exec.Step(ctx) // find road
	h.exec.Step(ctx) // positioned -> painting
	h.exec.Step(ctx) // aligned -> paint sequence, aborted during dispense

	assert.False(t, h.exec.Active())
	assert.Equal(t, state.Idle, h.machine.Current())

	// The dead mission must not resurface: idle stays the last published
	// status and completed never appears.
	require.NotEmpty(t, h.sink.statuses)
	assert.Equal(t, "idle", h.sink.statuses[len(h.sink.statuses)-1])
	assert.NotContains(t, h.sink.statuses, "completed")

	require.Len(t, h.sink.completions, 1)
	assert.False(t, h.sink.completions[0].success)
	assert.Contains(t, h.sink.completions[0].message, "power at 5%")
}

func TestExecutor_AbortIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	require.NoError(t, h.exec.Start(ctx, testOrder()))
	h.exec.Abort(ctx, "operator stop")
	h.exec.Abort(ctx, "operator stop")

	assert.Len(t, h.sink.completions, 1)
	assert.False(t, h.exec.Active())
	assert.Equal(t, state.Idle, h.machine.Current())
}

func TestExecutor_StartRefusedInErrorState(t *testing.T) {
	h := newHarness(t, testConfig())
	h.machine.EmergencyStop()
	ctx := context.Background()

	err := h.exec.Start(ctx, testOrder())
	require.Error(t, err)
	assert.True(t, errors.Is(err, NewFault(FaultNotStartable, "")))
	assert.False(t, h.exec.Active())
}

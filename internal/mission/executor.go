package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/nav"
	"github.com/Tbala-06/GIQ-2025/internal/state"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

// defaultNudgeCM is the lateral correction applied when the alignment
// collaborator asks for a move without a usable distance.
const defaultNudgeCM = 3.0

// Executor drives at most one mission through its steps. Step is called only
// from the control loop and never concurrently with itself; Abort may be
// called from any goroutine and is idempotent, so the safety poller and a
// superseding order can both cancel a mission without coordination.
type Executor struct {
	missionCfg config.MissionConfig
	navCfg     config.NavigationConfig
	actCfg     config.ActuatorConfig

	machine *state.Machine
	act     Actuator
	pos     nav.PositionSource
	roads   nav.RoadFinder
	aligner nav.Aligner
	sink    StatusSink
	history HistoryRecorder
	logger  *slog.Logger

	mu      sync.Mutex
	mission *Mission
}

// NewExecutor creates an executor with no active mission. history may be nil
// to disable durable mission records.
func NewExecutor(
	cfg *config.Config,
	machine *state.Machine,
	act Actuator,
	pos nav.PositionSource,
	roads nav.RoadFinder,
	aligner nav.Aligner,
	sink StatusSink,
	history HistoryRecorder,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		missionCfg: cfg.Mission,
		navCfg:     cfg.Navigation,
		actCfg:     cfg.Actuator,
		machine:    machine,
		act:        act,
		pos:        pos,
		roads:      roads,
		aligner:    aligner,
		sink:       sink,
		history:    history,
		logger:     logger.With("component", "executor"),
	}
}

// Start accepts a deployment order. An active mission is aborted first
// (reported as superseded, exactly once) before the new one is installed.
// Start fails only when the state machine refuses to leave its current
// state, e.g. an uncleared Error fault.
func (e *Executor) Start(ctx context.Context, order Order) error {
	if prior, ok := e.Current(); ok {
		e.logger.Info("new order supersedes active mission",
			"prior_job_id", prior.JobID,
			"new_job_id", order.JobID,
		)
		e.Abort(ctx, NewFault(FaultSuperseded, "superseded by new deployment order").Reason())
	}

	jobID := order.JobID
	e.sink.SetJob(&jobID)
	e.sink.SetStatus(types.StatusDispatched)

	if !e.machine.Request(state.Moving) {
		e.sink.SetJob(nil)
		e.sink.SetStatus(types.StatusError)
		return NewFault(FaultNotStartable,
			fmt.Sprintf("cannot start mission from state %s", e.machine.Current()))
	}

	now := time.Now()
	budget := e.missionCfg.MaxDuration
	m := &Mission{
		ID:          types.NewID(),
		JobID:       order.JobID,
		TargetLat:   order.Latitude,
		TargetLon:   order.Longitude,
		Step:        StepNavigation,
		CreatedAt:   now,
		deadline:    now.Add(budget),
		navDeadline: now.Add(time.Duration(float64(budget) * e.missionCfg.NavigationFraction)),
	}

	e.mu.Lock()
	e.mission = m
	e.mu.Unlock()

	e.sink.SetStatus(types.StatusMoving)
	e.logger.Info("mission started",
		"mission_id", m.ID,
		"job_id", m.JobID,
		"target_lat", m.TargetLat,
		"target_lon", m.TargetLon,
		"budget", budget,
	)
	return nil
}

// Step executes one control-tick of the active mission. A no-op when no
// mission is active. The mission deadline is checked before any step logic
// so no step can wedge the robot past its budget. Step failures abort the
// mission instead of propagating.
func (e *Executor) Step(ctx context.Context) {
	e.mu.Lock()
	m := e.mission
	if m == nil {
		e.mu.Unlock()
		return
	}
	id := m.ID
	step := m.Step
	deadline := m.deadline
	e.mu.Unlock()

	if time.Now().After(deadline) {
		e.Abort(ctx, NewFault(FaultMissionTimeout, "mission duration budget exceeded").Reason())
		return
	}

	var err error
	switch step {
	case StepNavigation:
		err = e.stepNavigation(ctx, id)
	case StepPositioning:
		err = e.stepPositioning(ctx, id)
	case StepPainting:
		err = e.stepPainting(ctx, id)
	case StepCompletion:
		e.finish(ctx, id)
	}

	if err != nil {
		reason := err.Error()
		var f *Fault
		if errors.As(err, &f) {
			reason = f.Reason()
		}
		e.Abort(ctx, reason)
	}
}

// Abort cancels the active mission: motors stopped, stencil homed, one
// failure report published, machine forced back to Idle. Idempotent; a call
// with no mission active does nothing and emits nothing.
func (e *Executor) Abort(ctx context.Context, reason string) {
	e.mu.Lock()
	m := e.mission
	e.mission = nil
	e.mu.Unlock()

	if m == nil {
		return
	}

	e.logger.Warn("aborting mission", "job_id", m.JobID, "reason", reason)

	if err := e.act.Stop(ctx); err != nil {
		e.logger.Error("stopping motors during abort", "error", err)
	}
	if err := e.act.RaiseStencil(ctx); err != nil {
		e.logger.Error("homing stencil during abort", "error", err)
	}

	e.sink.SetStatus(types.StatusAborted)
	e.sink.PublishCompletion(m.JobID, false, reason)
	e.record(ctx, *m, false, reason)

	e.machine.ResetToIdle()
	e.sink.SetJob(nil)
	e.sink.SetStatus(types.StatusIdle)
}

// Active reports whether a mission is in flight.
func (e *Executor) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission != nil
}

// Progress returns the active mission's 0-100 progress, or 0.
func (e *Executor) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mission == nil {
		return 0
	}
	return e.mission.Progress
}

// Current returns a copy of the active mission.
func (e *Executor) Current() (Mission, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mission == nil {
		return Mission{}, false
	}
	return *e.mission, true
}

// stepNavigation closes the distance to the target: heading is corrected
// first whenever its error exceeds the threshold, otherwise the robot
// advances one bounded increment. Never both in the same tick.
func (e *Executor) stepNavigation(ctx context.Context, id types.ID) error {
	m, ok := e.view(id)
	if !ok {
		return nil
	}

	if time.Now().After(m.navDeadline) {
		return NewFault(FaultNavigationTimeout, "navigation deadline exceeded")
	}

	if _, ok := e.pos.CurrentPosition(ctx); !ok {
		return e.fixMiss(id)
	}
	bearing, distance, ok := e.pos.BearingAndDistanceTo(ctx, m.TargetLat, m.TargetLon)
	if !ok {
		return e.fixMiss(id)
	}
	e.update(id, func(m *Mission) { m.fixMisses = 0 })

	if distance <= e.navCfg.ArrivalToleranceMeters {
		// The position reads above may have blocked; only advance the
		// machine if the mission survived them.
		if !e.update(id, func(m *Mission) {
			m.Step = StepPositioning
			m.Progress = StepPositioning.progress()
		}) {
			return nil
		}
		e.logger.Info("arrived at target", "job_id", m.JobID, "distance_m", distance)
		e.machine.Request(state.Positioning)
		e.sink.SetStatus(types.StatusPositioning)
		return nil
	}

	heading, ok := e.pos.CurrentHeading(ctx)
	if !ok {
		return e.fixMiss(id)
	}

	if diff := nav.BearingDiff(heading, bearing); math.Abs(diff) > e.navCfg.HeadingThresholdDegrees {
		if _, err := e.act.Rotate(ctx, diff, e.actCfg.TurnSpeed); err != nil {
			return WrapFault(FaultActuation, "heading correction failed", err)
		}
		return nil
	}

	advance := math.Min(distance, e.navCfg.MaxIncrementMeters)
	if _, err := e.act.MoveForward(ctx, advance*100, e.actCfg.DriveSpeed); err != nil {
		return WrapFault(FaultActuation, "drive segment failed", err)
	}
	return nil
}

// stepPositioning locates the nearest road marking, turns perpendicular to
// it and closes the remaining lateral gap down to the standoff distance.
func (e *Executor) stepPositioning(ctx context.Context, id types.ID) error {
	m, ok := e.view(id)
	if !ok {
		return nil
	}

	if !m.roadFound {
		pos, ok := e.pos.CurrentPosition(ctx)
		if !ok {
			return e.fixMiss(id)
		}
		road, found, err := e.roads.FindNearestRoad(ctx, pos.Lat, pos.Lon, e.navCfg.RoadSearchRadiusMeters)
		if err != nil {
			return WrapFault(FaultNoRoad, "road lookup failed", err)
		}
		if !found {
			return NewFault(FaultNoRoad,
				fmt.Sprintf("no road found within %.0f m", e.navCfg.RoadSearchRadiusMeters))
		}

		bearing := road.Bearing
		e.logger.Info("road located", "job_id", m.JobID, "bearing", bearing, "distance_m", road.Distance)
		e.update(id, func(m *Mission) {
			m.roadFound = true
			m.RoadBearing = &bearing
			m.roadGap = math.Max(0, road.Distance-e.navCfg.RoadStandoffMeters)
		})
		return nil
	}

	heading, ok := e.pos.CurrentHeading(ctx)
	if !ok {
		return e.fixMiss(id)
	}

	perp := nav.PerpendicularTo(*m.RoadBearing)
	if diff := nav.BearingDiff(heading, perp); math.Abs(diff) > e.navCfg.RoadAlignmentToleranceDegrees {
		if _, err := e.act.Rotate(ctx, diff, e.actCfg.TurnSpeed); err != nil {
			return WrapFault(FaultActuation, "turn to road failed", err)
		}
		return nil
	}

	if m.roadGap > e.navCfg.ArrivalToleranceMeters {
		advance := math.Min(m.roadGap, e.navCfg.MaxIncrementMeters)
		if _, err := e.act.MoveForward(ctx, advance*100, e.actCfg.PrecisionSpeed); err != nil {
			return WrapFault(FaultActuation, "approach to road failed", err)
		}
		e.update(id, func(m *Mission) { m.roadGap -= advance })
		return nil
	}

	if !e.update(id, func(m *Mission) {
		m.Step = StepPainting
		m.Progress = StepPainting.progress()
	}) {
		return nil
	}
	e.logger.Info("positioned at road", "job_id", m.JobID)
	e.machine.Request(state.Painting)
	e.sink.SetStatus(types.StatusPainting)
	return nil
}

// stepPainting consults the alignment collaborator once per tick, nudging
// the robot sideways until the stencil is centered, then runs the fixed
// physical paint sequence.
func (e *Executor) stepPainting(ctx context.Context, id types.ID) error {
	m, ok := e.view(id)
	if !ok {
		return nil
	}

	if m.alignAttempts >= e.missionCfg.MaxAlignmentAttempts {
		return NewFault(FaultAlignmentExhausted,
			fmt.Sprintf("stencil not aligned after %d attempts", m.alignAttempts))
	}

	instr, err := e.aligner.Instruction(ctx)
	if err != nil {
		return WrapFault(FaultAlignment, "alignment check failed", err)
	}
	if !e.active(id) {
		return nil
	}

	switch {
	case instr.Aligned || instr.Direction == nav.DirectionAligned:
		if err := e.paintSequence(ctx); err != nil {
			return err
		}
		// An abort may have landed during the paint sequence; the machine
		// and status cache must not be touched for a dead mission.
		if !e.update(id, func(m *Mission) {
			m.Step = StepCompletion
			m.Progress = StepCompletion.progress()
		}) {
			return nil
		}
		e.machine.Request(state.Completed)
		e.sink.SetStatus(types.StatusCompleted)
		return nil

	case instr.Direction == nav.DirectionLeft || instr.Direction == nav.DirectionRight:
		e.update(id, func(m *Mission) { m.alignAttempts++ })
		return e.lateralMove(ctx, instr)

	default:
		// Classifier could not produce a verdict; burn an attempt and retry.
		e.update(id, func(m *Mission) { m.alignAttempts++ })
		e.logger.Warn("alignment verdict unusable", "direction", string(instr.Direction), "message", instr.Message)
		return nil
	}
}

// lateralMove shifts the robot sideways: turn 90°, advance, turn back.
func (e *Executor) lateralMove(ctx context.Context, instr nav.AlignmentInstruction) error {
	turn := -90.0
	if instr.Direction == nav.DirectionRight {
		turn = 90.0
	}
	distance := instr.DistanceCM
	if distance <= 0 {
		distance = defaultNudgeCM
	}

	e.logger.Debug("lateral correction", "direction", string(instr.Direction), "distance_cm", distance)

	if _, err := e.act.Rotate(ctx, turn, e.actCfg.PrecisionSpeed); err != nil {
		return WrapFault(FaultActuation, "lateral turn failed", err)
	}
	if _, err := e.act.MoveForward(ctx, distance, e.actCfg.PrecisionSpeed); err != nil {
		return WrapFault(FaultActuation, "lateral advance failed", err)
	}
	if _, err := e.act.Rotate(ctx, -turn, e.actCfg.PrecisionSpeed); err != nil {
		return WrapFault(FaultActuation, "lateral turn-back failed", err)
	}
	return nil
}

// paintSequence runs lower -> settle -> dispense -> raise. Each sub-step
// failure faults the mission; a dispense failure still tries to home the
// stencil before surfacing.
func (e *Executor) paintSequence(ctx context.Context) error {
	e.logger.Info("stencil aligned, painting")

	if err := e.act.LowerStencil(ctx); err != nil {
		return WrapFault(FaultActuation, "lowering stencil failed", err)
	}
	if err := sleepCtx(ctx, e.missionCfg.StencilSettle); err != nil {
		return err
	}
	if err := e.act.DispensePaint(ctx, e.actCfg.DispenseDegrees); err != nil {
		if homeErr := e.act.RaiseStencil(ctx); homeErr != nil {
			e.logger.Error("homing stencil after dispense failure", "error", homeErr)
		}
		return WrapFault(FaultActuation, "dispensing paint failed", err)
	}
	if err := sleepCtx(ctx, e.missionCfg.DispenseDuration); err != nil {
		return err
	}
	if err := e.act.RaiseStencil(ctx); err != nil {
		return WrapFault(FaultActuation, "raising stencil failed", err)
	}
	return nil
}

// finish reports success, records the mission and returns the robot to Idle.
// The mission is claimed under the lock first so a concurrent Abort and a
// finish can never both report the same mission.
func (e *Executor) finish(ctx context.Context, id types.ID) {
	e.mu.Lock()
	if e.mission == nil || e.mission.ID != id {
		e.mu.Unlock()
		return
	}
	m := *e.mission
	e.mission = nil
	e.mu.Unlock()

	elapsed := time.Since(m.CreatedAt).Round(time.Second)
	message := fmt.Sprintf("marking painted in %s", elapsed)
	e.logger.Info("mission complete", "job_id", m.JobID, "elapsed", elapsed)

	m.Progress = 100
	e.sink.PublishCompletion(m.JobID, true, message)
	e.record(ctx, m, true, message)

	e.machine.Request(state.Idle)
	e.sink.SetJob(nil)
	e.sink.SetStatus(types.StatusIdle)
}

// fixMiss counts a consecutive missing position read and faults the mission
// once the tolerance is exhausted. A single hiccup just skips the tick.
func (e *Executor) fixMiss(id types.ID) error {
	var exhausted bool
	e.update(id, func(m *Mission) {
		m.fixMisses++
		exhausted = m.fixMisses >= e.navCfg.MaxFixMisses
	})
	if exhausted {
		return NewFault(FaultFixLost, "position fix lost")
	}
	e.logger.Debug("waiting for position fix")
	return nil
}

func (e *Executor) active(id types.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission != nil && e.mission.ID == id
}

// view returns a copy of the mission if it is still the active one.
func (e *Executor) view(id types.ID) (Mission, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mission == nil || e.mission.ID != id {
		return Mission{}, false
	}
	return *e.mission, true
}

// update mutates the mission if it is still the active one.
func (e *Executor) update(id types.ID, fn func(*Mission)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mission == nil || e.mission.ID != id {
		return false
	}
	fn(e.mission)
	return true
}

func (e *Executor) record(ctx context.Context, m Mission, success bool, message string) {
	if e.history == nil {
		return
	}
	entry := HistoryEntry{
		MissionID:  m.ID,
		JobID:      m.JobID,
		TargetLat:  m.TargetLat,
		TargetLon:  m.TargetLon,
		Success:    success,
		Message:    message,
		StartedAt:  m.CreatedAt,
		FinishedAt: time.Now(),
	}
	if err := e.history.Record(ctx, entry); err != nil {
		e.logger.Error("recording mission history", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

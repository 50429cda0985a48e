// Package mission implements the mission lifecycle: the record of one
// accepted deployment and the executor that drives it through navigation,
// positioning, painting and completion against the robot state machine.
package mission

import (
	"context"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/actuator"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

// Step is the internal phase of an active mission. It is finer-grained than
// the robot state: the machine tracks what the robot is doing, the step
// tracks where in the mission script the executor is.
type Step string

const (
	StepNavigation  Step = "navigation"
	StepPositioning Step = "positioning"
	StepPainting    Step = "painting"
	StepCompletion  Step = "completion"
)

// progress per completed phase, 0-100.
func (s Step) progress() int {
	switch s {
	case StepNavigation:
		return 0
	case StepPositioning:
		return 30
	case StepPainting:
		return 60
	case StepCompletion:
		return 90
	default:
		return 0
	}
}

// Order is one accepted deployment order.
type Order struct {
	JobID     int64
	Latitude  float64
	Longitude float64
}

// Mission is the record of one in-flight deployment. It is created when an
// order is accepted, mutated only by the executor, and destroyed on
// completion or abort. At most one mission exists at a time.
type Mission struct {
	ID        types.ID
	JobID     int64
	TargetLat float64
	TargetLon float64
	Step      Step
	Progress  int
	CreatedAt time.Time

	// RoadBearing is set once positioning has discovered the nearest road.
	RoadBearing *float64

	deadline    time.Time
	navDeadline time.Time

	roadFound     bool
	roadGap       float64
	alignAttempts int
	fixMisses     int
}

// HistoryEntry is the durable record of one finished mission.
type HistoryEntry struct {
	MissionID  types.ID
	JobID      int64
	TargetLat  float64
	TargetLon  float64
	Success    bool
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// HistoryRecorder persists finished missions.
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// StatusSink receives robot status updates and outcome reports for upstream
// publication. Implementations must not block the caller.
type StatusSink interface {
	SetStatus(status types.RobotStatus)
	SetJob(jobID *int64)
	PublishCompletion(jobID int64, success bool, message string)
}

// Actuator is the slice of the actuator link the executor drives.
type Actuator interface {
	MoveForward(ctx context.Context, distanceCM float64, speed int) (actuator.Encoders, error)
	Rotate(ctx context.Context, degrees float64, speed int) (actuator.Encoders, error)
	Stop(ctx context.Context) error
	LowerStencil(ctx context.Context) error
	RaiseStencil(ctx context.Context) error
	DispensePaint(ctx context.Context, degrees float64) error
}

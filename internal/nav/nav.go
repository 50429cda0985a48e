// Package nav defines the contracts of the navigation, road-lookup and
// stencil-alignment collaborators the mission core consumes. The
// implementations behind them (GNSS/IMU parsing, geospatial math, computer
// vision) live outside the core; this package carries only the interfaces,
// the small bearing arithmetic the executor needs, and simulated
// collaborators for bench runs and tests.
package nav

import (
	"context"
	"math"
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Lat float64
	Lon float64
}

// PositionSource provides the robot's current fix and heading and the
// bearing/distance to a target. A false ok means no reading is available
// right now; callers decide whether that is fatal.
type PositionSource interface {
	// CurrentPosition returns the latest position fix.
	CurrentPosition(ctx context.Context) (Position, bool)

	// CurrentHeading returns the compass heading in degrees, 0-360, 0 = north.
	CurrentHeading(ctx context.Context) (float64, bool)

	// BearingAndDistanceTo returns the bearing (degrees) and distance
	// (meters) from the current position to the target. ok is false when no
	// fix is available.
	BearingAndDistanceTo(ctx context.Context, lat, lon float64) (bearing, distance float64, ok bool)
}

// Road describes the nearest road segment relative to a query point.
type Road struct {
	// Bearing is the direction the road runs, degrees 0-360.
	Bearing float64

	// Distance is the lateral distance from the query point in meters.
	Distance float64
}

// RoadFinder locates the nearest painted-marking road within a bounded
// search radius. found is false when no road lies within maxDistance.
type RoadFinder interface {
	FindNearestRoad(ctx context.Context, lat, lon, maxDistance float64) (road Road, found bool, err error)
}

// Direction is the lateral correction the alignment collaborator asks for.
type Direction string

const (
	DirectionLeft    Direction = "LEFT"
	DirectionRight   Direction = "RIGHT"
	DirectionAligned Direction = "ALIGNED"
	DirectionError   Direction = "ERROR"
)

// AlignmentInstruction is one verdict from the camera-based stencil aligner.
type AlignmentInstruction struct {
	Aligned    bool
	Direction  Direction
	DistanceCM float64
	Confidence float64
	Message    string
}

// Aligner produces stencil alignment verdicts. The vision pipeline behind it
// is out of core scope; the executor only consumes the verdicts.
type Aligner interface {
	Instruction(ctx context.Context) (AlignmentInstruction, error)
}

// PowerSource reports the battery level as a percentage. ok is false when no
// reading is available.
type PowerSource interface {
	PowerLevel(ctx context.Context) (percent int, ok bool)
}

// NormalizeBearing wraps a bearing into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// BearingDiff returns the signed shortest rotation from heading to target in
// degrees, in (-180, 180]. Positive means turn clockwise.
func BearingDiff(heading, target float64) float64 {
	diff := math.Mod(target-heading, 360)
	if diff > 180 {
		diff -= 360
	} else if diff <= -180 {
		diff += 360
	}
	return diff
}

// PerpendicularTo returns the bearing perpendicular to a road bearing,
// normalized to [0, 360). Either perpendicular is acceptable for painting;
// this returns the clockwise one.
func PerpendicularTo(roadBearing float64) float64 {
	return NormalizeBearing(roadBearing + 90)
}

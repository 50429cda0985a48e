package nav

import (
	"context"
	"math"
	"sync"
)

// earthRadiusMeters backs the equirectangular approximation the simulator
// uses. The real geodesic math lives in the external navigation stack; this
// is only accurate enough for bench distances (tens of meters).
const earthRadiusMeters = 6371000

// Simulator is a bench stand-in for the position source. It starts at a
// fixed position and heading and exposes setters so tests and the simulated
// actuator peer can advance it.
type Simulator struct {
	mu      sync.Mutex
	pos     Position
	heading float64
	lostFix bool
}

// NewSimulator creates a simulated position source.
func NewSimulator(start Position, heading float64) *Simulator {
	return &Simulator{pos: start, heading: NormalizeBearing(heading)}
}

// CurrentPosition implements PositionSource.
func (s *Simulator) CurrentPosition(ctx context.Context) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostFix {
		return Position{}, false
	}
	return s.pos, true
}

// CurrentHeading implements PositionSource.
func (s *Simulator) CurrentHeading(ctx context.Context) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostFix {
		return 0, false
	}
	return s.heading, true
}

// BearingAndDistanceTo implements PositionSource.
func (s *Simulator) BearingAndDistanceTo(ctx context.Context, lat, lon float64) (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostFix {
		return 0, 0, false
	}

	dLat := (lat - s.pos.Lat) * math.Pi / 180
	dLon := (lon - s.pos.Lon) * math.Pi / 180 * math.Cos(s.pos.Lat*math.Pi/180)

	north := dLat * earthRadiusMeters
	east := dLon * earthRadiusMeters

	distance := math.Hypot(north, east)
	bearing := NormalizeBearing(math.Atan2(east, north) * 180 / math.Pi)
	return bearing, distance, true
}

// SetLostFix toggles fix availability.
func (s *Simulator) SetLostFix(lost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lostFix = lost
}

// Rotate adjusts the simulated heading by deg (positive = clockwise).
func (s *Simulator) Rotate(deg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = NormalizeBearing(s.heading + deg)
}

// Advance moves the simulated position along the current heading.
func (s *Simulator) Advance(meters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rad := s.heading * math.Pi / 180
	s.pos.Lat += meters * math.Cos(rad) / earthRadiusMeters * 180 / math.Pi
	s.pos.Lon += meters * math.Sin(rad) / earthRadiusMeters * 180 / math.Pi / math.Cos(s.pos.Lat*math.Pi/180)
}

// FixedRoadFinder is a RoadFinder that always reports one road.
type FixedRoadFinder struct {
	Road  Road
	Found bool
}

// FindNearestRoad implements RoadFinder.
func (f *FixedRoadFinder) FindNearestRoad(ctx context.Context, lat, lon, maxDistance float64) (Road, bool, error) {
	if !f.Found || f.Road.Distance > maxDistance {
		return Road{}, false, nil
	}
	return f.Road, true, nil
}

// ScriptedAligner returns LEFT verdicts until the configured number of
// correction rounds has passed, then reports ALIGNED. Zero rounds aligns on
// the first call.
type ScriptedAligner struct {
	mu     sync.Mutex
	Rounds int
	calls  int
}

// Instruction implements Aligner.
func (a *ScriptedAligner) Instruction(ctx context.Context) (AlignmentInstruction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.calls >= a.Rounds {
		return AlignmentInstruction{
			Aligned:    true,
			Direction:  DirectionAligned,
			Confidence: 0.9,
			Message:    "stencil centered",
		}, nil
	}
	a.calls++
	return AlignmentInstruction{
		Direction:  DirectionLeft,
		DistanceCM: 4,
		Confidence: 0.8,
		Message:    "move LEFT 4.0cm",
	}, nil
}

// FixedPower is a PowerSource reporting a constant level.
type FixedPower struct {
	Percent int
}

// PowerLevel implements PowerSource.
func (p *FixedPower) PowerLevel(ctx context.Context) (int, bool) {
	return p.Percent, true
}

// Package safety implements the pre-motion safety gate: a fixed, ordered set
// of checks that must all pass before any mission step is allowed to drive
// the actuators. The gate itself never commands hardware; callers react to a
// failed verdict by stopping and faulting.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tbala-06/GIQ-2025/internal/config"
)

// CheckName identifies one safety check. Checks run in declaration order and
// the first failure short-circuits the rest.
type CheckName string

const (
	CheckEmergency   CheckName = "emergency_stop"
	CheckFix         CheckName = "gps_fix"
	CheckPower       CheckName = "power"
	CheckInclination CheckName = "inclination"
)

// FixTier is the quality tier of a position fix.
type FixTier string

const (
	TierNone         FixTier = "none"
	Tier2D           FixTier = "2d"
	Tier3D           FixTier = "3d"
	TierDifferential FixTier = "differential"
)

// rank orders tiers for threshold comparison. Unknown tiers rank below none
// so a garbage reading can never satisfy the gate.
func (t FixTier) rank() int {
	switch t {
	case TierNone:
		return 0
	case Tier2D:
		return 1
	case Tier3D:
		return 2
	case TierDifferential:
		return 3
	default:
		return -1
	}
}

// FixReading is one position-fix quality sample.
type FixReading struct {
	Tier       FixTier
	Satellites int
}

// Sources are the sensor reads the gate consults. Any source may be nil,
// which the gate treats as the sensor being unavailable and resolves through
// that check's configured policy.
type Sources struct {
	// HardwareLatch reports whether the physical emergency-stop input is
	// asserted. It is polled on every check in addition to the software latch.
	HardwareLatch func(ctx context.Context) bool

	Fix   func(ctx context.Context) (FixReading, bool)
	Power func(ctx context.Context) (int, bool)
	Tilt  func(ctx context.Context) (float64, bool)
}

// Verdict is the outcome of running the gate. A failed verdict names the
// first check that failed and why.
type Verdict struct {
	OK     bool
	Check  CheckName
	Reason string
}

func pass() Verdict {
	return Verdict{OK: true}
}

func fail(check CheckName, reason string) Verdict {
	return Verdict{Check: check, Reason: reason}
}

// Gate evaluates the safety checks against live sensor sources. The
// emergency latch is sticky: once triggered (by software or by observing the
// hardware input) it fails every check until explicitly cleared, regardless
// of what the sensors currently read.
type Gate struct {
	cfg     config.SafetyConfig
	sources Sources
	logger  *slog.Logger

	mu      sync.Mutex
	latched bool
	reason  string
}

// NewGate creates a gate with the latch released.
func NewGate(cfg config.SafetyConfig, sources Sources, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:     cfg,
		sources: sources,
		logger:  logger.With("component", "safety"),
	}
}

// TriggerEmergency asserts the software emergency latch. Idempotent.
func (g *Gate) TriggerEmergency(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.latched {
		return
	}
	g.latched = true
	g.reason = reason
	g.logger.Warn("emergency stop latched", "reason", reason)
}

// ClearEmergency releases the latch. The next Check re-evaluates the
// hardware input, so a still-asserted physical button re-latches immediately.
func (g *Gate) ClearEmergency() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.latched {
		return
	}
	g.latched = false
	g.reason = ""
	g.logger.Info("emergency stop cleared")
}

// EmergencyLatched reports the latch state without touching the sensors.
func (g *Gate) EmergencyLatched() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latched
}

// Check runs all checks in order and returns the first failure, or a passing
// verdict when everything is safe.
func (g *Gate) Check(ctx context.Context) Verdict {
	if v := g.checkEmergency(ctx); !v.OK {
		return v
	}
	if v := g.checkFix(ctx); !v.OK {
		return v
	}
	if v := g.checkPower(ctx); !v.OK {
		return v
	}
	return g.checkTilt(ctx)
}

// Authorized reports whether motion is currently permitted.
func (g *Gate) Authorized(ctx context.Context) bool {
	return g.Check(ctx).OK
}

func (g *Gate) checkEmergency(ctx context.Context) Verdict {
	g.mu.Lock()
	latched, reason := g.latched, g.reason
	g.mu.Unlock()

	if latched {
		return fail(CheckEmergency, reason)
	}

	if g.sources.HardwareLatch != nil && g.sources.HardwareLatch(ctx) {
		g.TriggerEmergency("hardware emergency stop asserted")
		return fail(CheckEmergency, "hardware emergency stop asserted")
	}
	return pass()
}

func (g *Gate) checkFix(ctx context.Context) Verdict {
	if g.sources.Fix == nil {
		return g.unavailable(CheckFix, g.cfg.FixPolicy)
	}
	reading, ok := g.sources.Fix(ctx)
	if !ok {
		return g.unavailable(CheckFix, g.cfg.FixPolicy)
	}

	min := FixTier(g.cfg.MinFixTier)
	if reading.Tier.rank() < min.rank() {
		return fail(CheckFix, fmt.Sprintf("fix tier %s below required %s", reading.Tier, min))
	}
	if reading.Satellites < g.cfg.MinSatellites {
		return fail(CheckFix, fmt.Sprintf("%d satellites, need %d", reading.Satellites, g.cfg.MinSatellites))
	}
	return pass()
}

func (g *Gate) checkPower(ctx context.Context) Verdict {
	if g.sources.Power == nil {
		return g.unavailable(CheckPower, g.cfg.PowerPolicy)
	}
	level, ok := g.sources.Power(ctx)
	if !ok {
		return g.unavailable(CheckPower, g.cfg.PowerPolicy)
	}

	if level < g.cfg.MinPowerPercent {
		return fail(CheckPower, fmt.Sprintf("power at %d%%, minimum %d%%", level, g.cfg.MinPowerPercent))
	}
	return pass()
}

func (g *Gate) checkTilt(ctx context.Context) Verdict {
	if g.sources.Tilt == nil {
		return g.unavailable(CheckInclination, g.cfg.TiltPolicy)
	}
	tilt, ok := g.sources.Tilt(ctx)
	if !ok {
		return g.unavailable(CheckInclination, g.cfg.TiltPolicy)
	}

	if tilt < 0 {
		tilt = -tilt
	}
	if tilt > g.cfg.MaxTiltDegrees {
		return fail(CheckInclination, fmt.Sprintf("tilt %.1f° exceeds %.1f°", tilt, g.cfg.MaxTiltDegrees))
	}
	return pass()
}

// unavailable resolves a missing or failed sensor read through the check's
// configured policy. Fail-open checks pass with a warning; fail-closed
// checks fail the gate.
func (g *Gate) unavailable(check CheckName, policy config.CheckPolicy) Verdict {
	if policy == config.FailClosed {
		return fail(check, "sensor unavailable")
	}
	g.logger.Warn("sensor unavailable, check passing by policy", "check", string(check))
	return pass()
}

// Package daemon wires the mission control core together and runs it: the
// control loop ticking the mission executor, the safety poller, the status
// reporter and the MQTT dispatch front.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/comms"
	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/mission"
	"github.com/Tbala-06/GIQ-2025/internal/nav"
	"github.com/Tbala-06/GIQ-2025/internal/safety"
	"github.com/Tbala-06/GIQ-2025/internal/state"
	"github.com/Tbala-06/GIQ-2025/internal/store"
	"github.com/Tbala-06/GIQ-2025/internal/telemetry"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

// Link is the actuator channel the daemon manages: the executor's verbs plus
// session lifecycle.
type Link interface {
	mission.Actuator
	Connect(ctx context.Context) error
	Disconnect() error
}

// Transport carries telemetry upstream and manages its own connection. The
// default is the MQTT dispatch front; benches may substitute their own.
type Transport interface {
	telemetry.Publisher
	Connect(ctx context.Context) error
	Disconnect()
}

// Collaborators are the externally supplied hardware providers. Link,
// Position, Roads and Aligner are required; the rest are optional and their
// absence is resolved by the safety gate's per-check policy.
type Collaborators struct {
	Link     Link
	Position nav.PositionSource
	Roads    nav.RoadFinder
	Aligner  nav.Aligner
	Power    nav.PowerSource

	// Fix reports position-fix quality for the safety gate. When nil, a
	// usable position read counts as a good 3D fix.
	Fix func(ctx context.Context) (safety.FixReading, bool)

	// Tilt reports the larger of roll/pitch magnitude in degrees.
	Tilt func(ctx context.Context) (float64, bool)

	// EmergencyInput reports the physical emergency-stop line.
	EmergencyInput func(ctx context.Context) bool

	// Transport overrides the MQTT dispatch front when set. Inbound orders
	// then arrive only through Deploy.
	Transport Transport
}

func (c Collaborators) validate() error {
	switch {
	case c.Link == nil:
		return fmt.Errorf("no actuator link wired")
	case c.Position == nil:
		return fmt.Errorf("no position source wired")
	case c.Roads == nil:
		return fmt.Errorf("no road finder wired")
	case c.Aligner == nil:
		return fmt.Errorf("no alignment source wired")
	}
	return nil
}

// Daemon is the assembled mission control core.
type Daemon struct {
	cfg    *config.Config
	collab Collaborators
	logger *slog.Logger

	machine   *state.Machine
	gate      *safety.Gate
	exec      *mission.Executor
	transport Transport
	reporter  *telemetry.Reporter
	history   *store.Store

	orders chan mission.Order
}

// New assembles a daemon from configuration and hardware providers.
func New(cfg *config.Config, collab Collaborators, logger *slog.Logger) (*Daemon, error) {
	if err := collab.validate(); err != nil {
		return nil, fmt.Errorf("%w (enable simulation or supply hardware providers)", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		cfg:    cfg,
		collab: collab,
		logger: logger.With("component", "daemon"),
		orders: make(chan mission.Order, 4),
	}

	d.machine = state.NewMachine(logger)
	d.gate = safety.NewGate(cfg.Safety, d.safetySources(), logger)

	d.transport = collab.Transport
	if d.transport == nil {
		mqttCfg := cfg.MQTT
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = cfg.Robot.ID
		}
		d.transport = comms.NewClient(mqttCfg, comms.Handlers{
			OnDeploy:    d.enqueue,
			OnEmergency: d.emergencyStop,
		}, logger)
	}
	d.reporter = telemetry.NewReporter(cfg.Telemetry, cfg.Robot.ID, d.transport, logger)

	// Every accepted machine transition lands in the status cache, so forced
	// transitions (emergency stop, reset) publish without executor help.
	d.machine.Subscribe(func(old, new state.RobotState) {
		d.reporter.SetStatus(types.RobotStatus(new.String()))
	})

	var history mission.HistoryRecorder
	if cfg.Store.Path != "" {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening mission history: %w", err)
		}
		d.history = s
		history = s
	}

	d.exec = mission.NewExecutor(
		cfg,
		d.machine,
		collab.Link,
		collab.Position,
		collab.Roads,
		collab.Aligner,
		d.reporter,
		history,
		logger,
	)
	return d, nil
}

// safetySources adapts the collaborators to the gate's sensor reads.
func (d *Daemon) safetySources() safety.Sources {
	src := safety.Sources{
		HardwareLatch: d.collab.EmergencyInput,
		Fix:           d.collab.Fix,
		Tilt:          d.collab.Tilt,
	}
	if src.Fix == nil {
		src.Fix = func(ctx context.Context) (safety.FixReading, bool) {
			if _, ok := d.collab.Position.CurrentPosition(ctx); !ok {
				return safety.FixReading{}, false
			}
			return safety.FixReading{
				Tier:       safety.Tier3D,
				Satellites: d.cfg.Safety.MinSatellites,
			}, true
		}
	}
	if d.collab.Power != nil {
		src.Power = d.collab.Power.PowerLevel
	}
	return src
}

// Run starts the daemon and blocks until ctx is cancelled. Any active
// mission is aborted on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	if d.history != nil {
		defer d.history.Close()
	}

	running, pid, err := CheckPIDFile(d.cfg.Daemon.PIDFile)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if err := WritePIDFile(d.cfg.Daemon.PIDFile, os.Getpid()); err != nil {
		return err
	}
	defer RemovePIDFile(d.cfg.Daemon.PIDFile)

	if err := d.collab.Link.Connect(ctx); err != nil {
		return fmt.Errorf("connecting actuator link: %w", err)
	}
	defer d.collab.Link.Disconnect()

	if err := d.transport.Connect(ctx); err != nil {
		return err
	}
	defer d.transport.Disconnect()

	d.reporter.Start(ctx)
	defer d.reporter.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.safetyLoop(ctx)
	}()
	defer wg.Wait()

	d.logger.Info("daemon running",
		"robot_id", d.cfg.Robot.ID,
		"tick", d.cfg.Daemon.TickInterval,
		"safety_interval", d.cfg.Daemon.SafetyInterval,
	)

	ticker := time.NewTicker(d.cfg.Daemon.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			d.exec.Abort(context.Background(), "system shutdown")
			return nil

		case order := <-d.orders:
			if err := d.exec.Start(ctx, order); err != nil {
				d.logger.Error("rejecting deployment", "job_id", order.JobID, "error", err)
				d.reporter.PublishCompletion(order.JobID, false, err.Error())
			}

		case <-ticker.C:
			d.exec.Step(ctx)
			if pos, ok := d.collab.Position.CurrentPosition(ctx); ok {
				d.reporter.SetPosition(pos.Lat, pos.Lon)
			}
		}
	}
}

// Deploy hands a deployment order to the control loop. Non-blocking; an
// order is dropped with a log when the queue is full, since a later order
// supersedes it anyway.
func (d *Daemon) Deploy(order mission.Order) {
	d.enqueue(order)
}

func (d *Daemon) enqueue(order mission.Order) {
	select {
	case d.orders <- order:
	default:
		d.logger.Warn("deployment queue full, dropping order", "job_id", order.JobID)
	}
}

// emergencyStop handles a remote emergency-stop command: latch the gate,
// abort the mission and fault the machine until an operator clears it.
func (d *Daemon) emergencyStop(reason string) {
	d.gate.TriggerEmergency(reason)
	d.exec.Abort(context.Background(), reason)
	d.machine.EmergencyStop()
}

// safetyLoop polls the gate on its own slower interval. Safety faults force
// Error rather than Idle, so a new mission cannot start until the fault is
// cleared. It also refreshes the battery reading for telemetry.
func (d *Daemon) safetyLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Daemon.SafetyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.collab.Power != nil {
				if level, ok := d.collab.Power.PowerLevel(ctx); ok {
					d.reporter.SetBattery(level)
				}
			}

			verdict := d.gate.Check(ctx)
			if verdict.OK {
				continue
			}
			d.logger.Warn("safety check failed",
				"check", string(verdict.Check),
				"reason", verdict.Reason,
			)
			if d.exec.Active() || d.machine.Busy() {
				d.exec.Abort(ctx, fmt.Sprintf("safety: %s", verdict.Reason))
			}
			if d.machine.Current() != state.Error {
				d.machine.EmergencyStop()
			}
		}
	}
}

// Machine exposes the state machine for status commands and tests.
func (d *Daemon) Machine() *state.Machine {
	return d.machine
}

// Gate exposes the safety gate for the emergency-stop CLI and tests.
func (d *Daemon) Gate() *safety.Gate {
	return d.gate
}

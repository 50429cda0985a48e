package actuator

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/Tbala-06/GIQ-2025/internal/nav"
)

// Encoder scale of the simulated drivetrain. Arbitrary but stable so tests
// can assert proportionality between commanded distance and feedback.
const (
	simTicksPerCM     = 10
	simTicksPerDegree = 5
)

// SimulatedPeer speaks the peripheral's side of the line protocol, backed by
// an optional position simulator so that movement commands actually move the
// simulated robot. It lets the full stack run on a bench with no hardware.
type SimulatedPeer struct {
	sim    *nav.Simulator
	logger *slog.Logger

	mu  sync.Mutex
	enc Encoders
}

// NewSimulatedPeer creates a peer. sim may be nil, in which case commands
// are acknowledged without moving anything.
func NewSimulatedPeer(sim *nav.Simulator, logger *slog.Logger) *SimulatedPeer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedPeer{sim: sim, logger: logger.With("component", "simpeer")}
}

// Pipe returns a connected in-memory client conn and starts serving the
// protocol on the other end. The serving goroutine exits when the client
// side closes or sends EXIT.
func (p *SimulatedPeer) Pipe() net.Conn {
	client, server := net.Pipe()
	go p.Serve(server)
	return client
}

// Serve handles one protocol session on conn and closes it on return.
func (p *SimulatedPeer) Serve(conn net.Conn) {
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", readySentinel); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, exit := p.handle(line)
		if _, err := fmt.Fprintf(conn, "%s\n", reply); err != nil {
			return
		}
		if exit {
			return
		}
	}
}

func (p *SimulatedPeer) handle(line string) (reply string, exit bool) {
	fields := strings.Fields(line)
	verb := Verb(fields[0])
	args := make([]float64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return "ERROR bad argument: " + f, false
		}
		args = append(args, v)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch verb {
	case VerbMoveForward, VerbMoveBackward:
		if len(args) == 0 {
			return "ERROR missing distance", false
		}
		cm := args[0]
		if verb == VerbMoveBackward {
			cm = -cm
		}
		if p.sim != nil {
			p.sim.Advance(cm / 100)
		}
		ticks := int64(cm * simTicksPerCM)
		p.enc.Left += ticks
		p.enc.Right += ticks
		return p.doneWithEncoders(), false

	case VerbRotate:
		if len(args) == 0 {
			return "ERROR missing degrees", false
		}
		if p.sim != nil {
			p.sim.Rotate(args[0])
		}
		ticks := int64(args[0] * simTicksPerDegree)
		p.enc.Left += ticks
		p.enc.Right -= ticks
		return p.doneWithEncoders(), false

	case VerbLowerStencil, VerbRaiseStencil, VerbDispensePaint:
		return "DONE", false

	case VerbStop:
		return "OK", false

	case VerbGetEncoders:
		return fmt.Sprintf("OK left=%d right=%d", p.enc.Left, p.enc.Right), false

	case VerbResetEncoders:
		p.enc = Encoders{}
		return "OK", false

	case VerbExit:
		return "OK", true

	default:
		return "ERROR unknown command: " + string(verb), false
	}
}

func (p *SimulatedPeer) doneWithEncoders() string {
	return fmt.Sprintf("DONE left=%d right=%d", p.enc.Left, p.enc.Right)
}

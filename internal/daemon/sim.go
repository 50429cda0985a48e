package daemon

import (
	"context"
	"log/slog"
	"net"

	"github.com/Tbala-06/GIQ-2025/internal/actuator"
	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/nav"
)

// simStart is where a simulated robot wakes up. Arbitrary bench location.
var simStart = nav.Position{Lat: 1.3521, Lon: 103.8198}

// SimulatedCollaborators builds a full set of bench providers: a simulated
// position source coupled to an in-memory actuator peer, a road found 1 m
// from the start, a stencil that aligns after one correction, and a fixed
// power level. Everything runs in-process with no hardware.
func SimulatedCollaborators(cfg *config.Config, logger *slog.Logger) Collaborators {
	sim := nav.NewSimulator(simStart, 0)
	peer := actuator.NewSimulatedPeer(sim, logger)

	// The in-memory peer needs no discovery and no interface setup.
	linkCfg := cfg.Actuator
	linkCfg.PeerAddress = "simulated"
	linkCfg.ConfigureInterface = false

	link := actuator.NewLink(linkCfg, logger,
		actuator.WithDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return peer.Pipe(), nil
		}),
	)

	return Collaborators{
		Link:     link,
		Position: sim,
		Roads:    &nav.FixedRoadFinder{Road: nav.Road{Bearing: 90, Distance: 1}, Found: true},
		Aligner:  &nav.ScriptedAligner{Rounds: 1},
		Power:    &nav.FixedPower{Percent: cfg.Simulation.PowerLevel},
	}
}

package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/config"
)

// probeTimeout bounds a single reachability probe during discovery. Probes
// are on-link, so anything slower than this is absent.
const probeTimeout = 2 * time.Second

// autoLocator finds the peripheral on the point-to-point link: first the
// configured candidate addresses, then whatever the kernel neighbor table
// has seen on the link interface.
type autoLocator struct {
	cfg    config.ActuatorConfig
	logger *slog.Logger
	probe  func(ctx context.Context, addr string) bool
}

// Locate implements Locator.
func (a *autoLocator) Locate(ctx context.Context) (string, error) {
	for _, cand := range a.cfg.CandidateAddresses {
		if a.probe(ctx, net.JoinHostPort(cand, fmt.Sprintf("%d", a.cfg.Port))) {
			a.logger.Info("peripheral found at candidate address", "addr", cand)
			return cand, nil
		}
	}

	if a.cfg.Interface != "" {
		for _, addr := range neighborAddresses(ctx, a.cfg.Interface) {
			if a.probe(ctx, net.JoinHostPort(addr, fmt.Sprintf("%d", a.cfg.Port))) {
				a.logger.Info("peripheral found via neighbor table", "addr", addr, "interface", a.cfg.Interface)
				return addr, nil
			}
		}
	}

	return "", ErrPeerNotFound
}

// probe attempts a short TCP connect and discards the connection. Used only
// during discovery; the real session is opened by Connect.
func (l *Link) probe(ctx context.Context, addr string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := l.dial(probeCtx, addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// neighborAddresses lists IPv4 addresses the kernel has seen on iface,
// via `ip neigh show dev <iface>`. Errors degrade to an empty list since
// discovery falls through to ErrPeerNotFound anyway.
func neighborAddresses(ctx context.Context, iface string) []string {
	out, err := exec.CommandContext(ctx, "ip", "neigh", "show", "dev", iface).Output()
	if err != nil {
		return nil
	}

	var addrs []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if ip := net.ParseIP(fields[0]); ip != nil && ip.To4() != nil {
			addrs = append(addrs, fields[0])
		}
	}
	return addrs
}

// configureInterfaceAddr puts the local end of the link interface onto the
// peer's /16 so the point-to-point route exists. The address is derived by
// bumping the last octet of the peer address; "File exists" from the kernel
// means it is already configured and is not an error.
func configureInterfaceAddr(ctx context.Context, iface, peerAddr string) error {
	ip := net.ParseIP(peerAddr).To4()
	if ip == nil {
		return fmt.Errorf("peer address %q is not IPv4", peerAddr)
	}

	local := net.IPv4(ip[0], ip[1], ip[2], ip[3]+1)
	out, err := exec.CommandContext(ctx, "ip", "addr", "add", local.String()+"/16", "dev", iface).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "File exists") {
			return nil
		}
		return fmt.Errorf("ip addr add: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

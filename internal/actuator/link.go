package actuator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/config"
)

// Dialer opens the command channel to the peripheral.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Locator resolves the peripheral's address when it is not pinned in config.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// Link is the reliable command/response channel to the motor-controller
// peripheral. Exactly one command is in flight at a time: a caller issuing a
// second command blocks until the first completes or times out, so the wait
// is bounded by the per-command timeout.
//
// A Link is constructed disconnected; every verb returns ErrNotConnected
// until Connect succeeds.
type Link struct {
	cfg     config.ActuatorConfig
	logger  *slog.Logger
	dial    Dialer
	locator Locator
	netcfg  InterfaceConfigurer

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// InterfaceConfigurer places the local link interface onto the peer's
// subnet before dialing.
type InterfaceConfigurer func(ctx context.Context, iface, peerAddr string) error

// Option is a functional option for configuring a Link.
type Option func(*Link)

// WithDialer replaces the default TCP dialer.
func WithDialer(d Dialer) Option {
	return func(l *Link) { l.dial = d }
}

// WithLocator replaces the default candidate/neighbor-table locator.
func WithLocator(loc Locator) Option {
	return func(l *Link) { l.locator = loc }
}

// WithInterfaceConfigurer replaces the default `ip addr` configurer.
func WithInterfaceConfigurer(c InterfaceConfigurer) Option {
	return func(l *Link) { l.netcfg = c }
}

// NewLink creates a disconnected Link.
func NewLink(cfg config.ActuatorConfig, logger *slog.Logger, opts ...Option) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Link{
		cfg:    cfg,
		logger: logger.With("component", "actuator"),
	}
	l.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	l.locator = &autoLocator{cfg: cfg, logger: l.logger, probe: l.probe}
	l.netcfg = configureInterfaceAddr

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect locates the peripheral, configures the link interface, opens the
// command channel and blocks until the READY sentinel arrives. Any step
// failing is a hard connect failure; there is no retry at this level.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return ErrAlreadyConnected
	}

	peer := l.cfg.PeerAddress
	if peer == "" {
		var err error
		peer, err = l.locator.Locate(ctx)
		if err != nil {
			return fmt.Errorf("locating peripheral: %w", err)
		}
	}

	if l.cfg.ConfigureInterface && l.cfg.Interface != "" {
		if err := l.netcfg(ctx, l.cfg.Interface, peer); err != nil {
			return fmt.Errorf("configuring interface %s: %w", l.cfg.Interface, err)
		}
	}

	addr := peer
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(peer, fmt.Sprintf("%d", l.cfg.Port))
	}

	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()

	conn, err := l.dial(dialCtx, addr)
	if err != nil {
		return fmt.Errorf("dialing peripheral at %s: %w", addr, err)
	}

	reader := bufio.NewReader(conn)
	if err := awaitReady(conn, reader, l.cfg.ConnectTimeout); err != nil {
		conn.Close()
		return err
	}

	l.conn = conn
	l.reader = reader
	l.logger.Info("peripheral connected", "addr", addr)
	return nil
}

// awaitReady reads lines until the READY sentinel or the timeout elapses.
func awaitReady(conn net.Conn, reader *bufio.Reader, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if isTimeout(err) {
				return ErrNoReady
			}
			return fmt.Errorf("waiting for READY: %w", err)
		}
		if strings.TrimSpace(line) == readySentinel {
			conn.SetReadDeadline(time.Time{})
			return nil
		}
	}
}

// Connected reports whether the command channel is open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Disconnect sends EXIT (best effort) and closes the command channel.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	// The peripheral exits on EXIT; the response is advisory.
	if _, err := l.exchangeLocked(Command{Verb: VerbExit}, l.cfg.StopTimeout); err != nil {
		l.logger.Debug("exit command failed", "error", err)
	}

	err := l.conn.Close()
	l.conn = nil
	l.reader = nil
	l.logger.Info("peripheral disconnected")
	return err
}

// MoveForward drives forward by distanceCM. A speed of 0 uses the
// peripheral default. Returns the encoder feedback pair.
func (l *Link) MoveForward(ctx context.Context, distanceCM float64, speed int) (Encoders, error) {
	resp, err := l.execRetry(ctx, movementCommand(VerbMoveForward, distanceCM, speed))
	if err != nil {
		return Encoders{}, err
	}
	return resp.Encoders, nil
}

// MoveBackward drives backward by distanceCM.
func (l *Link) MoveBackward(ctx context.Context, distanceCM float64, speed int) (Encoders, error) {
	resp, err := l.execRetry(ctx, movementCommand(VerbMoveBackward, distanceCM, speed))
	if err != nil {
		return Encoders{}, err
	}
	return resp.Encoders, nil
}

// Rotate turns in place by degrees; positive is clockwise.
func (l *Link) Rotate(ctx context.Context, degrees float64, speed int) (Encoders, error) {
	resp, err := l.execRetry(ctx, movementCommand(VerbRotate, degrees, speed))
	if err != nil {
		return Encoders{}, err
	}
	return resp.Encoders, nil
}

// Stop halts all motors immediately. Safety-critical: sent exactly once
// with a short timeout and never retried.
func (l *Link) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.exchangeLocked(Command{Verb: VerbStop}, l.cfg.StopTimeout)
	if err != nil {
		return err
	}
	l.logger.Info("motors stopped")
	return nil
}

// LowerStencil lowers the stencil mechanism.
func (l *Link) LowerStencil(ctx context.Context) error {
	_, err := l.execRetry(ctx, Command{Verb: VerbLowerStencil})
	return err
}

// RaiseStencil raises the stencil mechanism back to home.
func (l *Link) RaiseStencil(ctx context.Context) error {
	_, err := l.execRetry(ctx, Command{Verb: VerbRaiseStencil})
	return err
}

// DispensePaint runs the dispenser arm. A degrees of 0 uses the peripheral
// default rotation.
func (l *Link) DispensePaint(ctx context.Context, degrees float64) error {
	cmd := Command{Verb: VerbDispensePaint}
	if degrees > 0 {
		cmd.Args = []float64{degrees}
	}
	_, err := l.execRetry(ctx, cmd)
	return err
}

// EncoderPositions reads the current encoder pair without moving.
func (l *Link) EncoderPositions(ctx context.Context) (Encoders, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resp, err := l.exchangeLocked(Command{Verb: VerbGetEncoders}, l.cfg.CommandTimeout)
	if err != nil {
		return Encoders{}, err
	}
	return resp.Encoders, nil
}

// ResetEncoders zeroes both encoders.
func (l *Link) ResetEncoders(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.exchangeLocked(Command{Verb: VerbResetEncoders}, l.cfg.CommandTimeout)
	return err
}

func movementCommand(verb Verb, arg float64, speed int) Command {
	cmd := Command{Verb: verb, Args: []float64{arg}}
	if speed > 0 {
		cmd.Speed = &speed
	}
	return cmd
}

// execRetry runs one command with the bounded retry policy: retries on
// timeout or transport failure with a fixed inter-attempt delay, never on an
// authoritative ERROR rejection. The command mutex is held per attempt, not
// across the retry delay, so a Stop cannot be starved by a retrying mover.
func (l *Link) execRetry(ctx context.Context, cmd Command) (Response, error) {
	var lastErr error

	for attempt := 1; attempt <= l.cfg.MaxRetries; attempt++ {
		l.mu.Lock()
		resp, err := l.exchangeLocked(cmd, l.cfg.CommandTimeout)
		l.mu.Unlock()

		if err == nil {
			return resp, nil
		}
		if IsRejection(err) || errors.Is(err, ErrNotConnected) {
			return Response{}, err
		}

		lastErr = err
		if attempt < l.cfg.MaxRetries {
			l.logger.Warn("retrying command",
				"verb", cmd.Verb,
				"attempt", attempt,
				"max", l.cfg.MaxRetries,
				"error", err,
			)
			select {
			case <-time.After(l.cfg.RetryDelay):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}
	}

	return Response{}, fmt.Errorf("%s failed after %d attempts: %w", cmd.Verb, l.cfg.MaxRetries, lastErr)
}

// exchangeLocked writes one command line and reads until a terminal token
// or the timeout. Must be called with l.mu held.
func (l *Link) exchangeLocked(cmd Command, timeout time.Duration) (Response, error) {
	if l.conn == nil {
		return Response{}, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	line := cmd.Encode()
	l.logger.Debug("sending command", "line", line)

	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return Response{}, err
	}
	if _, err := l.conn.Write([]byte(line + "\n")); err != nil {
		if isTimeout(err) {
			return Response{}, ErrTimeout
		}
		return Response{}, fmt.Errorf("writing command: %w", err)
	}

	for {
		if err := l.conn.SetReadDeadline(deadline); err != nil {
			return Response{}, err
		}
		raw, err := l.reader.ReadString('\n')
		if err != nil {
			if isTimeout(err) {
				return Response{}, ErrTimeout
			}
			return Response{}, fmt.Errorf("reading response: %w", err)
		}

		resp, terminal := ParseResponse(raw)
		if !terminal {
			l.logger.Debug("peripheral chatter", "line", strings.TrimSpace(raw))
			continue
		}

		if resp.Kind == ResponseError {
			return Response{}, &RejectionError{Verb: cmd.Verb, Message: resp.Message}
		}
		return resp, nil
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

package actuator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every verb on a link that has not
	// completed Connect. "Not yet connected" is a typed state, not an
	// attribute probe.
	ErrNotConnected = errors.New("actuator link not connected")

	// ErrAlreadyConnected is returned by Connect on a connected link.
	ErrAlreadyConnected = errors.New("actuator link already connected")

	// ErrTimeout means no terminal response arrived within the per-command
	// timeout. Timeouts are failures, not peripheral rejections.
	ErrTimeout = errors.New("command timed out")

	// ErrPeerNotFound means discovery could not locate the peripheral.
	ErrPeerNotFound = errors.New("peripheral address not found")

	// ErrNoReady means the command channel opened but the READY sentinel
	// never arrived within the connect timeout.
	ErrNoReady = errors.New("peripheral did not signal READY")
)

// RejectionError is an authoritative ERROR response from the peripheral.
// Rejections are never retried.
type RejectionError struct {
	Verb    Verb
	Message string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("peripheral rejected %s: %s", e.Verb, e.Message)
}

// IsRejection reports whether err is an authoritative peripheral rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Package actuator implements the command/response protocol between the
// control computer and the motor-controller peripheral. The wire format is a
// fixed line-oriented ASCII protocol (one command per line, one response
// block per command); internally commands and responses are closed variant
// types so malformed or unknown traffic is a parse error at the boundary.
package actuator

import (
	"fmt"
	"strconv"
	"strings"
)

// Verb is a command verb understood by the peripheral.
type Verb string

const (
	VerbMoveForward   Verb = "MOVE_FORWARD"
	VerbMoveBackward  Verb = "MOVE_BACKWARD"
	VerbRotate        Verb = "ROTATE"
	VerbStop          Verb = "STOP"
	VerbLowerStencil  Verb = "LOWER_STENCIL"
	VerbRaiseStencil  Verb = "RAISE_STENCIL"
	VerbDispensePaint Verb = "DISPENSE_PAINT"
	VerbGetEncoders   Verb = "GET_ENCODERS"
	VerbResetEncoders Verb = "RESET_ENCODERS"
	VerbExit          Verb = "EXIT"
)

// Command is one outbound command line. Args are positional numeric
// arguments; Speed, when non-nil, is appended last.
type Command struct {
	Verb  Verb
	Args  []float64
	Speed *int
}

// Encode serializes the command to its wire line (without newline).
func (c Command) Encode() string {
	var b strings.Builder
	b.WriteString(string(c.Verb))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(a, 'f', -1, 64))
	}
	if c.Speed != nil {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(*c.Speed))
	}
	return b.String()
}

// ResponseKind tags the closed set of terminal response lines.
type ResponseKind int

const (
	// ResponseDone acknowledges a completed movement or accessory command,
	// optionally carrying encoder feedback.
	ResponseDone ResponseKind = iota

	// ResponseOk acknowledges a control command (stop, encoder reads).
	ResponseOk

	// ResponseError is an authoritative rejection from the peripheral.
	ResponseError
)

// String returns the wire token for the response kind.
func (k ResponseKind) String() string {
	switch k {
	case ResponseDone:
		return "DONE"
	case ResponseOk:
		return "OK"
	case ResponseError:
		return "ERROR"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Encoders is one wheel-encoder feedback pair. Values are signed rotation
// ticks since the last reset and are the only feedback proving physical
// motion occurred.
type Encoders struct {
	Left  int64
	Right int64
}

// Response is one terminal response from the peripheral.
type Response struct {
	Kind     ResponseKind
	Encoders Encoders
	// Message carries the error text for ResponseError.
	Message string
}

// readySentinel is the single line the peripheral emits once after startup.
const readySentinel = "READY"

// ParseResponse parses a response line. terminal is false for lines that are
// not one of the terminal tokens (the caller keeps reading; the peripheral
// may interleave log chatter with responses).
//
// Encoder fields are parsed from key=value tokens; a missing or malformed
// field defaults to 0 rather than failing the call, since encoder feedback
// is advisory. The DONE/OK/ERROR token itself is authoritative.
func ParseResponse(line string) (resp Response, terminal bool) {
	line = strings.TrimSpace(line)

	switch {
	case line == "DONE" || strings.HasPrefix(line, "DONE "):
		return Response{Kind: ResponseDone, Encoders: parseEncoders(line)}, true
	case line == "OK" || strings.HasPrefix(line, "OK "):
		return Response{Kind: ResponseOk, Encoders: parseEncoders(line)}, true
	case line == "ERROR" || strings.HasPrefix(line, "ERROR "):
		return Response{Kind: ResponseError, Message: strings.TrimSpace(strings.TrimPrefix(line, "ERROR"))}, true
	default:
		return Response{}, false
	}
}

func parseEncoders(line string) Encoders {
	var enc Encoders
	for _, tok := range strings.Fields(line)[1:] {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "left":
			enc.Left = n
		case "right":
			enc.Right = n
		}
	}
	return enc
}

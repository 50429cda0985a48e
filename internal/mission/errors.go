package mission

import (
	"errors"
	"fmt"
)

// FaultCode is a namespaced code identifying why a mission faulted.
type FaultCode string

const (
	FaultMissionTimeout     FaultCode = "mission_timeout"
	FaultNavigationTimeout  FaultCode = "navigation_timeout"
	FaultFixLost            FaultCode = "position_fix_lost"
	FaultNoRoad             FaultCode = "no_road_found"
	FaultAlignment          FaultCode = "alignment_failed"
	FaultAlignmentExhausted FaultCode = "alignment_exhausted"
	FaultActuation          FaultCode = "actuation_failed"
	FaultSuperseded         FaultCode = "superseded"
	FaultNotStartable       FaultCode = "not_startable"
)

// Fault is a structured mission failure with a code, a human-readable
// message, and an optional cause. The formatted message travels upstream in
// the completion report, so it must stand on its own without the code.
type Fault struct {
	Code    FaultCode
	Message string
	Cause   error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Code, f.Message, f.Cause)
	}
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is matches faults by code so errors.Is works against sentinel faults.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if errors.As(target, &other) {
		return f.Code == other.Code
	}
	return false
}

// Reason is the human-readable part of the fault, without the code prefix.
func (f *Fault) Reason() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Cause)
	}
	return f.Message
}

// NewFault creates a Fault with the given code and message.
func NewFault(code FaultCode, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// WrapFault creates a Fault that wraps an existing error.
func WrapFault(code FaultCode, message string, cause error) *Fault {
	return &Fault{Code: code, Message: message, Cause: cause}
}

package types

import (
	"encoding/json"
	"fmt"
)

// RobotStatus is the upstream-facing status of the robot as published on the
// status topic. It is a superset of the internal state machine states: the
// dispatch front also wants to see transient outcomes such as "dispatched"
// and "aborted" that never exist as control states.
type RobotStatus string

const (
	StatusIdle        RobotStatus = "idle"
	StatusDispatched  RobotStatus = "dispatched"
	StatusMoving      RobotStatus = "moving"
	StatusPositioning RobotStatus = "positioning"
	StatusPainting    RobotStatus = "painting"
	StatusCompleted   RobotStatus = "completed"
	StatusAborted     RobotStatus = "aborted"
	StatusError       RobotStatus = "error"
)

// String returns the string representation of the RobotStatus.
func (s RobotStatus) String() string {
	return string(s)
}

// IsValid checks if the RobotStatus is a valid value.
func (s RobotStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusDispatched, StatusMoving, StatusPositioning,
		StatusPainting, StatusCompleted, StatusAborted, StatusError:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s RobotStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RobotStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := RobotStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid robot status: %s", str)
	}

	*s = status
	return nil
}

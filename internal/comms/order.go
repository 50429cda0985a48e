// Package comms is the dispatch front: it receives deployment orders and the
// remote emergency stop over MQTT and publishes status and job-completion
// reports upstream.
package comms

import (
	"encoding/json"
	"fmt"

	"github.com/Tbala-06/GIQ-2025/internal/mission"
)

// DeployOrder is the inbound deployment message. All fields are required;
// pointers distinguish absent fields from zero values.
type DeployOrder struct {
	JobID     *int64   `json:"job_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Validate rejects orders with any missing field or out-of-range coordinate.
func (o DeployOrder) Validate() error {
	if o.JobID == nil {
		return fmt.Errorf("deploy order missing job_id")
	}
	if o.Latitude == nil {
		return fmt.Errorf("deploy order missing latitude")
	}
	if o.Longitude == nil {
		return fmt.Errorf("deploy order missing longitude")
	}
	if *o.Latitude < -90 || *o.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", *o.Latitude)
	}
	if *o.Longitude < -180 || *o.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", *o.Longitude)
	}
	return nil
}

// Order converts a validated deploy order into a mission order.
func (o DeployOrder) Order() mission.Order {
	return mission.Order{
		JobID:     *o.JobID,
		Latitude:  *o.Latitude,
		Longitude: *o.Longitude,
	}
}

// ParseDeployOrder decodes and validates one deploy message payload.
func ParseDeployOrder(payload []byte) (mission.Order, error) {
	var o DeployOrder
	if err := json.Unmarshal(payload, &o); err != nil {
		return mission.Order{}, fmt.Errorf("decoding deploy order: %w", err)
	}
	if err := o.Validate(); err != nil {
		return mission.Order{}, err
	}
	return o.Order(), nil
}

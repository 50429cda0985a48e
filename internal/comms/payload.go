package comms

import (
	"encoding/json"
	"time"

	"github.com/Tbala-06/GIQ-2025/internal/telemetry"
)

// statusPayload is the outbound status message. The wire uses "lat"/"lng"
// and a fractional-seconds Unix timestamp.
type statusPayload struct {
	RobotID   string   `json:"robot_id"`
	Status    string   `json:"status"`
	Timestamp float64  `json:"timestamp"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Battery   *int     `json:"battery,omitempty"`
	JobID     *int64   `json:"job_id,omitempty"`
}

type completionPayload struct {
	RobotID   string  `json:"robot_id"`
	JobID     int64   `json:"job_id"`
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func encodeStatus(snap telemetry.Snapshot, now time.Time) ([]byte, error) {
	return json.Marshal(statusPayload{
		RobotID:   snap.RobotID,
		Status:    snap.Status.String(),
		Timestamp: unixSeconds(now),
		Lat:       snap.Lat,
		Lng:       snap.Lon,
		Battery:   snap.Battery,
		JobID:     snap.JobID,
	})
}

func encodeCompletion(c telemetry.Completion, now time.Time) ([]byte, error) {
	return json.Marshal(completionPayload{
		RobotID:   c.RobotID,
		JobID:     c.JobID,
		Success:   c.Success,
		Message:   c.Message,
		Timestamp: unixSeconds(now),
	})
}

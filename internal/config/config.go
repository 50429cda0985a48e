package config

import (
	"time"
)

// Config is the root configuration for the roadmark controller.
type Config struct {
	Robot      RobotConfig      `mapstructure:"robot" yaml:"robot" validate:"required"`
	MQTT       MQTTConfig       `mapstructure:"mqtt" yaml:"mqtt" validate:"required"`
	Actuator   ActuatorConfig   `mapstructure:"actuator" yaml:"actuator" validate:"required"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation" validate:"required"`
	Mission    MissionConfig    `mapstructure:"mission" yaml:"mission" validate:"required"`
	Safety     SafetyConfig     `mapstructure:"safety" yaml:"safety" validate:"required"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Daemon     DaemonConfig     `mapstructure:"daemon" yaml:"daemon"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
}

// RobotConfig identifies this robot to the dispatch front.
type RobotConfig struct {
	ID   string `mapstructure:"id" yaml:"id" validate:"required"`
	Name string `mapstructure:"name" yaml:"name"`
}

// MQTTConfig contains the dispatch front transport settings.
// Username and Password support ${ENV_VAR} interpolation.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker" yaml:"broker" validate:"required"`
	Port           int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Username       string        `mapstructure:"username" yaml:"username,omitempty"`
	Password       string        `mapstructure:"password" yaml:"password,omitempty"`
	ClientID       string        `mapstructure:"client_id" yaml:"client_id"`
	QoS            byte          `mapstructure:"qos" yaml:"qos" validate:"max=2"`
	KeepAlive      time.Duration `mapstructure:"keep_alive" yaml:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"min=1s"`

	TopicDeploy    string `mapstructure:"topic_deploy" yaml:"topic_deploy" validate:"required"`
	TopicStatus    string `mapstructure:"topic_status" yaml:"topic_status" validate:"required"`
	TopicComplete  string `mapstructure:"topic_complete" yaml:"topic_complete" validate:"required"`
	TopicEmergency string `mapstructure:"topic_emergency" yaml:"topic_emergency"`
}

// ActuatorConfig contains the motor-controller link settings.
type ActuatorConfig struct {
	// Interface is the dedicated point-to-point network interface the
	// peripheral is attached to (e.g. usb0).
	Interface string `mapstructure:"interface" yaml:"interface"`

	// PeerAddress pins the peripheral address. When empty, the link probes
	// CandidateAddresses and the interface neighbor table.
	PeerAddress        string   `mapstructure:"peer_address" yaml:"peer_address,omitempty"`
	CandidateAddresses []string `mapstructure:"candidate_addresses" yaml:"candidate_addresses"`
	Port               int      `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// ConfigureInterface controls whether connect assigns the local
	// interface an address on the peer subnet before dialing.
	ConfigureInterface bool `mapstructure:"configure_interface" yaml:"configure_interface"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"min=1s"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout" validate:"min=1s"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout" validate:"min=100ms"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	// Motor speeds as a percentage 0-100.
	DriveSpeed     int `mapstructure:"drive_speed" yaml:"drive_speed" validate:"min=0,max=100"`
	TurnSpeed      int `mapstructure:"turn_speed" yaml:"turn_speed" validate:"min=0,max=100"`
	PrecisionSpeed int `mapstructure:"precision_speed" yaml:"precision_speed" validate:"min=0,max=100"`

	// DispenseDegrees is the dispenser arm rotation for one full dispense.
	DispenseDegrees float64 `mapstructure:"dispense_degrees" yaml:"dispense_degrees" validate:"gt=0"`
}

// NavigationConfig tunes the approach and positioning steps.
type NavigationConfig struct {
	// ArrivalToleranceMeters is the maximum distance from the target still
	// counted as arrived.
	ArrivalToleranceMeters float64 `mapstructure:"arrival_tolerance_meters" yaml:"arrival_tolerance_meters" validate:"gt=0"`

	// HeadingThresholdDegrees is the heading error above which the robot
	// corrects heading instead of advancing.
	HeadingThresholdDegrees float64 `mapstructure:"heading_threshold_degrees" yaml:"heading_threshold_degrees" validate:"gt=0"`

	// MaxIncrementMeters bounds a single forward move during approach.
	MaxIncrementMeters float64 `mapstructure:"max_increment_meters" yaml:"max_increment_meters" validate:"gt=0"`

	// MaxFixMisses is how many consecutive ticks may pass without a
	// position fix before the mission aborts.
	MaxFixMisses int `mapstructure:"max_fix_misses" yaml:"max_fix_misses" validate:"min=1"`

	// RoadSearchRadiusMeters bounds the nearest-road lookup.
	RoadSearchRadiusMeters float64 `mapstructure:"road_search_radius_meters" yaml:"road_search_radius_meters" validate:"gt=0"`

	// RoadAlignmentToleranceDegrees is the acceptable error against the
	// road-perpendicular bearing.
	RoadAlignmentToleranceDegrees float64 `mapstructure:"road_alignment_tolerance_degrees" yaml:"road_alignment_tolerance_degrees" validate:"gt=0"`

	// RoadStandoffMeters is the lateral gap above which the robot closes in
	// on the road before painting.
	RoadStandoffMeters float64 `mapstructure:"road_standoff_meters" yaml:"road_standoff_meters" validate:"gt=0"`
}

// MissionConfig bounds a single mission.
type MissionConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration" validate:"min=10s"`

	// NavigationFraction is the share of MaxDuration granted to the
	// navigation step before it aborts on its own sub-deadline.
	NavigationFraction float64 `mapstructure:"navigation_fraction" yaml:"navigation_fraction" validate:"gt=0,lte=1"`

	MaxAlignmentAttempts int           `mapstructure:"max_alignment_attempts" yaml:"max_alignment_attempts" validate:"min=1"`
	StencilSettle        time.Duration `mapstructure:"stencil_settle" yaml:"stencil_settle"`
	DispenseDuration     time.Duration `mapstructure:"dispense_duration" yaml:"dispense_duration" validate:"min=100ms"`
}

// CheckPolicy decides how a safety check treats a missing reading.
type CheckPolicy string

const (
	// FailOpen passes the check with a warning when the reading is
	// unavailable (sensor hiccup must not ground the robot).
	FailOpen CheckPolicy = "fail_open"

	// FailClosed fails the check when the reading is unavailable.
	FailClosed CheckPolicy = "fail_closed"
)

// IsValid checks if the CheckPolicy is a valid value.
func (p CheckPolicy) IsValid() bool {
	return p == FailOpen || p == FailClosed
}

// SafetyConfig tunes the safety gate. The emergency latch has no policy
// knob: a latched stop is always authoritative.
type SafetyConfig struct {
	MinFixTier       string      `mapstructure:"min_fix_tier" yaml:"min_fix_tier" validate:"oneof=2d 3d differential"`
	MinSatellites    int         `mapstructure:"min_satellites" yaml:"min_satellites" validate:"min=0"`
	FixPolicy        CheckPolicy `mapstructure:"fix_policy" yaml:"fix_policy" validate:"oneof=fail_open fail_closed"`
	MinPowerPercent  int         `mapstructure:"min_power_percent" yaml:"min_power_percent" validate:"min=0,max=100"`
	PowerPolicy      CheckPolicy `mapstructure:"power_policy" yaml:"power_policy" validate:"oneof=fail_open fail_closed"`
	MaxTiltDegrees   float64     `mapstructure:"max_tilt_degrees" yaml:"max_tilt_degrees" validate:"gt=0,lte=90"`
	TiltPolicy       CheckPolicy `mapstructure:"tilt_policy" yaml:"tilt_policy" validate:"oneof=fail_open fail_closed"`
}

// TelemetryConfig tunes status reporting.
type TelemetryConfig struct {
	ReportInterval time.Duration `mapstructure:"report_interval" yaml:"report_interval" validate:"min=1s"`
}

// StoreConfig locates the local mission history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// DaemonConfig tunes the control loop scheduling.
type DaemonConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" validate:"min=10ms"`
	SafetyInterval time.Duration `mapstructure:"safety_interval" yaml:"safety_interval" validate:"min=1s"`
	PIDFile        string        `mapstructure:"pid_file" yaml:"pid_file"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// SimulationConfig enables bench runs without hardware.
type SimulationConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PowerLevel is the battery percentage the simulated power source
	// reports.
	PowerLevel int `mapstructure:"power_level" yaml:"power_level" validate:"min=0,max=100"`
}

package config

import "time"

// Default returns a complete configuration with field-calibrated defaults.
// Values mirror the shipped field unit; anything marked in the sample config
// as needing calibration should be overridden per robot.
func Default() *Config {
	return &Config{
		Robot: RobotConfig{
			ID:   "robot_001",
			Name: "PaintBot Alpha",
		},
		MQTT: MQTTConfig{
			Broker:         "broker.hivemq.com",
			Port:           1883,
			ClientID:       "", // defaults to robot id at connect
			QoS:            1,
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			TopicDeploy:    "bot/commands/deploy",
			TopicStatus:    "robot/status",
			TopicComplete:  "robot/job/complete",
			TopicEmergency: "robot/emergency_stop",
		},
		Actuator: ActuatorConfig{
			Interface: "usb0",
			CandidateAddresses: []string{
				"169.254.131.241",
				"169.254.144.109",
			},
			Port:               27700,
			ConfigureInterface: true,
			ConnectTimeout:     10 * time.Second,
			CommandTimeout:     30 * time.Second,
			StopTimeout:        2 * time.Second,
			MaxRetries:         3,
			RetryDelay:         time.Second,
			DriveSpeed:         50,
			TurnSpeed:          40,
			PrecisionSpeed:     25,
			DispenseDegrees:    360,
		},
		Navigation: NavigationConfig{
			ArrivalToleranceMeters:        0.5,
			HeadingThresholdDegrees:       10,
			MaxIncrementMeters:            1.0,
			MaxFixMisses:                  10,
			RoadSearchRadiusMeters:        50,
			RoadAlignmentToleranceDegrees: 5,
			RoadStandoffMeters:            2.0,
		},
		Mission: MissionConfig{
			MaxDuration:          5 * time.Minute,
			NavigationFraction:   0.6,
			MaxAlignmentAttempts: 10,
			StencilSettle:        time.Second,
			DispenseDuration:     3 * time.Second,
		},
		Safety: SafetyConfig{
			MinFixTier:      "3d",
			MinSatellites:   4,
			FixPolicy:       FailOpen,
			MinPowerPercent: 20,
			PowerPolicy:     FailClosed,
			MaxTiltDegrees:  30,
			TiltPolicy:      FailOpen,
		},
		Telemetry: TelemetryConfig{
			ReportInterval: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: "roadmark.db",
		},
		Daemon: DaemonConfig{
			TickInterval:   100 * time.Millisecond,
			SafetyInterval: 5 * time.Second,
			PIDFile:        "roadmark.pid",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Simulation: SimulationConfig{
			Enabled:    false,
			PowerLevel: 85,
		},
	}
}

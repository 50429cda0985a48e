package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tbala-06/GIQ-2025/internal/daemon"
)

var simulate bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the robot control daemon",
	Long: `Run starts the mission control daemon: it connects the actuator
link and the MQTT dispatch front, then waits for deployment orders.

With --simulate the robot runs entirely in-process against a simulated
actuator peripheral and position source, which is the supported way to
exercise missions on a bench without hardware.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Logging)

		var collab daemon.Collaborators
		if simulate || cfg.Simulation.Enabled {
			logger.Info("running in simulation mode")
			collab = daemon.SimulatedCollaborators(cfg, logger)
		} else {
			// The navigation, road-geometry and vision providers live in
			// separate onboard services and are attached at integration time.
			return fmt.Errorf("hardware providers are not wired in this build; run with --simulate")
		}

		d, err := daemon.New(cfg, collab, logger)
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "run against simulated hardware")
	rootCmd.AddCommand(runCmd)
}

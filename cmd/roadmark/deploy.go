package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tbala-06/GIQ-2025/internal/comms"
	"github.com/Tbala-06/GIQ-2025/internal/mission"
)

var (
	deployJobID int64
	deployLat   float64
	deployLon   float64
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish a deployment order to the robot",
	Long: `Deploy publishes a deployment order on the dispatch topic, the same
message the approval pipeline sends. Useful for field tests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Logging)

		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = fmt.Sprintf("roadmark-deploy-%d", os.Getpid())

		client := comms.NewClient(mqttCfg, comms.Handlers{}, logger)
		if err := client.Connect(cmd.Context()); err != nil {
			return err
		}
		defer client.Disconnect()

		order := mission.Order{
			JobID:     deployJobID,
			Latitude:  deployLat,
			Longitude: deployLon,
		}
		if err := client.PublishDeploy(cmd.Context(), order); err != nil {
			return err
		}

		fmt.Printf("Deployment order published: job %d -> (%.6f, %.6f)\n",
			order.JobID, order.Latitude, order.Longitude)
		return nil
	},
}

func init() {
	deployCmd.Flags().Int64Var(&deployJobID, "job", 0, "job identifier")
	deployCmd.Flags().Float64Var(&deployLat, "lat", 0, "target latitude")
	deployCmd.Flags().Float64Var(&deployLon, "lon", 0, "target longitude")
	deployCmd.MarkFlagRequired("job")
	deployCmd.MarkFlagRequired("lat")
	deployCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(deployCmd)
}

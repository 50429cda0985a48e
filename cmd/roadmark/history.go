package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tbala-06/GIQ-2025/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently finished missions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No finished missions recorded.")
			return nil
		}

		for _, e := range entries {
			outcome := "FAILED"
			if e.Success {
				outcome = "OK"
			}
			fmt.Printf("%s  job %-6d  %-6s  (%.6f, %.6f)  %s  %s\n",
				e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				e.JobID,
				outcome,
				e.TargetLat,
				e.TargetLon,
				e.FinishedAt.Sub(e.StartedAt).Round(time.Second),
				e.Message,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum entries to show")
	rootCmd.AddCommand(historyCmd)
}

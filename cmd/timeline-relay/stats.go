package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
)

func newStatsCommand() *cobra.Command {
	var addr string
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show registry occupancy of a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(addr + "/stats")
			if err != nil {
				return fmt.Errorf("fetch stats: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch stats: unexpected status %s", resp.Status)
			}

			var stats state.Stats
			if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
				return fmt.Errorf("decode stats: %w", err)
			}

			if jsonMode {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			colorize := false
			if f, ok := cmd.OutOrStdout().(*os.File); ok {
				colorize = isTerminal(f)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats, colorize))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Base URL of the relay server")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print raw JSON instead of a table")

	return cmd
}

package cli

import (
	"github.com/VrindaBansal/mevscope/internal/tui"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start terminal-based monitoring interface",
	Long: `Launch an interactive terminal UI showing engine health and the
top ranked opportunities, refreshed live. Press 'q' to quit.`,
	RunE: runMonitor,
}

var (
	refreshRate int
	topN        int
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVarP(&refreshRate, "refresh", "r", 1000, "refresh rate in milliseconds")
	monitorCmd.Flags().IntVarP(&topN, "top", "t", 10, "number of opportunities to display")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	return tui.StartMonitor(tui.Config{
		RefreshRate: refreshRate,
		TopN:        topN,
	})
}

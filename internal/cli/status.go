package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check engine status",
	Long: `Query a running engine's read API for head height, store and
scoring statistics, and pending mempool size.`,
	RunE: runStatus,
}

var jsonOutput bool

// engineStatus mirrors the /api/v1/status payload.
type engineStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	HeadHeight    uint64  `json:"headHeight"`
	HeadHash      string  `json:"headHash"`
	Store         struct {
		Pools           int    `json:"pools"`
		Positions       int    `json:"positions"`
		Height          uint64 `json:"height"`
		StaleRejections int64  `json:"staleRejections"`
		DecodeErrors    int64  `json:"decodeErrors"`
		Rollbacks       int64  `json:"rollbacks"`
	} `json:"store"`
	Scorer struct {
		Accepted      int64 `json:"accepted"`
		Emitted       int64 `json:"emitted"`
		Suppressed    int64 `json:"suppressed"`
		Filtered      int64 `json:"filtered"`
		OverflowDrops int64 `json:"overflowDrops"`
		Invalidated   int64 `json:"invalidated"`
		Live          int   `json:"live"`
	} `json:"scorer"`
	PendingTxs       int       `json:"pendingTxs"`
	WebSocketClients int       `json:"websocketClients"`
	Timestamp        time.Time `json:"timestamp"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := fetchStatus()
	if err != nil {
		return fmt.Errorf("failed to get engine status: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}
	printStatus(status)
	return nil
}

func fetchStatus() (*engineStatus, error) {
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}

	url := fmt.Sprintf("http://%s:%d/api/v1/status", host, port)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if key := viper.GetString("server.api_key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return &engineStatus{Status: "offline", Timestamp: time.Now()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var status engineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

func printStatus(status *engineStatus) {
	fmt.Println("mevscope engine status")
	fmt.Println("======================")
	fmt.Println()
	fmt.Printf("Status:        %s\n", status.Status)
	if status.UptimeSeconds > 0 {
		fmt.Printf("Uptime:        %s\n", time.Duration(status.UptimeSeconds*float64(time.Second)).Round(time.Second))
	}
	if status.Status == "offline" {
		return
	}
	fmt.Printf("Head:          #%d %s\n", status.HeadHeight, status.HeadHash)
	fmt.Printf("Pending txs:   %d\n", status.PendingTxs)
	fmt.Printf("WS clients:    %d\n", status.WebSocketClients)

	fmt.Println()
	fmt.Println("World state")
	fmt.Println("-----------")
	fmt.Printf("Pools:             %d\n", status.Store.Pools)
	fmt.Printf("Positions:         %d\n", status.Store.Positions)
	fmt.Printf("Stale rejections:  %d\n", status.Store.StaleRejections)
	fmt.Printf("Decode errors:     %d\n", status.Store.DecodeErrors)
	fmt.Printf("Rollbacks:         %d\n", status.Store.Rollbacks)

	fmt.Println()
	fmt.Println("Scoring")
	fmt.Println("-------")
	fmt.Printf("Accepted:     %d\n", status.Scorer.Accepted)
	fmt.Printf("Filtered:     %d\n", status.Scorer.Filtered)
	fmt.Printf("Suppressed:   %d\n", status.Scorer.Suppressed)
	fmt.Printf("Emitted:      %d\n", status.Scorer.Emitted)
	fmt.Printf("Invalidated:  %d\n", status.Scorer.Invalidated)
	fmt.Printf("Live:         %d\n", status.Scorer.Live)
}

// Package tui renders a terminal dashboard over the engine's read API:
// head height, store and scorer counters, and the current top
// opportunities.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/VrindaBansal/mevscope/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
)

// Config holds TUI monitor settings.
type Config struct {
	RefreshRate int
	TopN        int
}

// Model is the bubbletea application state.
type Model struct {
	config     Config
	status     *engineStatus
	top        []*types.MEVOpportunity
	loading    bool
	err        error
	width      int
	height     int
	lastUpdate time.Time
}

// engineStatus mirrors the /api/v1/status payload.
type engineStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	HeadHeight    uint64  `json:"headHeight"`
	PendingTxs    int     `json:"pendingTxs"`
	Store         struct {
		Pools           int   `json:"pools"`
		Positions       int   `json:"positions"`
		StaleRejections int64 `json:"staleRejections"`
		Rollbacks       int64 `json:"rollbacks"`
	} `json:"store"`
	Scorer struct {
		Emitted     int64 `json:"emitted"`
		Suppressed  int64 `json:"suppressed"`
		Filtered    int64 `json:"filtered"`
		Invalidated int64 `json:"invalidated"`
		Live        int   `json:"live"`
	} `json:"scorer"`
}

type tickMsg time.Time

type refreshMsg struct {
	status *engineStatus
	top    []*types.MEVOpportunity
}

type errorMsg error

// StartMonitor runs the TUI until the user quits.
func StartMonitor(config Config) error {
	if config.RefreshRate <= 0 {
		config.RefreshRate = 1000
	}
	if config.TopN <= 0 {
		config.TopN = 10
	}
	p := tea.NewProgram(Model{config: config, loading: true}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(fetch(m.config.TopN), tickCmd(m.config.RefreshRate))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetch(m.config.TopN)
		}

	case tickMsg:
		return m, tea.Batch(fetch(m.config.TopN), tickCmd(m.config.RefreshRate))

	case refreshMsg:
		m.status = msg.status
		m.top = msg.top
		m.loading = false
		m.err = nil
		m.lastUpdate = time.Now()
		return m, nil

	case errorMsg:
		m.err = msg
		m.loading = false
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#005F87")).
		Padding(0, 1)
	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#0087AF")).
		Padding(1, 2)

	var content string
	content += titleStyle.Width(m.width-2).Render("mevscope monitor") + "\n\n"
	content += lipgloss.NewStyle().Faint(true).Render("Press 'r' to refresh, 'q' to quit") + "\n\n"

	switch {
	case m.err != nil:
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true).
			Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	case m.loading:
		content += "fetching status...\n"
	case m.status != nil:
		content += m.renderStatus()
		content += m.renderTop()
	}

	if !m.lastUpdate.IsZero() {
		content += "\n" + lipgloss.NewStyle().Faint(true).
			Render("Last updated: "+m.lastUpdate.Format("15:04:05"))
	}
	return contentStyle.Width(m.width - 4).Render(content)
}

func (m Model) renderStatus() string {
	statusColor := lipgloss.Color("#FF0000")
	if m.status.Status == "running" {
		statusColor = lipgloss.Color("#00FF00")
	}
	statusStyle := lipgloss.NewStyle().Foreground(statusColor).Bold(true)

	var content string
	content += fmt.Sprintf("Status: %s   Head: %d   Uptime: %s\n",
		statusStyle.Render(m.status.Status),
		m.status.HeadHeight,
		(time.Duration(m.status.UptimeSeconds) * time.Second).String())

	content += "\nWorld State\n"
	content += "───────────\n"
	content += fmt.Sprintf("Pools:            %d\n", m.status.Store.Pools)
	content += fmt.Sprintf("Positions:        %d\n", m.status.Store.Positions)
	content += fmt.Sprintf("Pending Txs:      %d\n", m.status.PendingTxs)
	content += fmt.Sprintf("Stale Rejections: %d\n", m.status.Store.StaleRejections)
	content += fmt.Sprintf("Rollbacks:        %d\n", m.status.Store.Rollbacks)

	content += "\nScoring\n"
	content += "───────\n"
	content += fmt.Sprintf("Live:        %d\n", m.status.Scorer.Live)
	content += fmt.Sprintf("Emitted:     %d\n", m.status.Scorer.Emitted)
	content += fmt.Sprintf("Suppressed:  %d\n", m.status.Scorer.Suppressed)
	content += fmt.Sprintf("Filtered:    %d\n", m.status.Scorer.Filtered)
	content += fmt.Sprintf("Invalidated: %d\n", m.status.Scorer.Invalidated)
	return content
}

func (m Model) renderTop() string {
	if len(m.top) == 0 {
		return "\nNo live opportunities.\n"
	}
	var content string
	content += "\nTop Opportunities\n"
	content += "─────────────────\n"
	for _, opp := range m.top {
		content += fmt.Sprintf("%-11s net $%-10.2f conf %.2f  h%d\n",
			opp.Type, opp.NetProfitUSD, opp.Confidence, opp.SourceBlockHeight)
	}
	return content
}

func fetch(topN int) tea.Cmd {
	return func() tea.Msg {
		status, top, err := fetchEngine(topN)
		if err != nil {
			return errorMsg(err)
		}
		return refreshMsg{status: status, top: top}
	}
}

func tickCmd(refreshRate int) tea.Cmd {
	return tea.Tick(time.Duration(refreshRate)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchEngine(topN int) (*engineStatus, []*types.MEVOpportunity, error) {
	base := apiBaseURL()
	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := &engineStatus{Status: "offline"}
	if err := getJSON(ctx, client, base+"/api/v1/status", status); err != nil {
		// Engine might not be running.
		return status, nil, nil
	}

	var list struct {
		Opportunities []*types.MEVOpportunity `json:"opportunities"`
	}
	url := fmt.Sprintf("%s/api/v1/opportunities?limit=%d", base, topN)
	if err := getJSON(ctx, client, url, &list); err != nil {
		return status, nil, nil
	}
	return status, list.Opportunities, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if key := viper.GetString("server.api_key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiBaseURL() string {
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

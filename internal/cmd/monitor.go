package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/messaging"
)

var (
	monitorFilterType  string
	monitorFilterAgent string
	monitorNoTmux      bool
)

var startMonitoringCmd = &cobra.Command{
	Use:     "start-monitoring",
	GroupID: GroupMonitor,
	Short:   "Tail agent_messages.log, optionally filtered by type or sender",
	Long: `Print delivered messages from agent_messages.log as they would be
read by an operator watching the swarm, per spec §6. With --filter-type or
--filter-agent, only matching records are shown.

Dashboard/TUI rendering is out of scope (spec §1's non-goal); this prints
one formatted line per record to stdout. Unless --no-tmux is given, a
pane-capable backend is asked for a dedicated monitor pane first.`,
	RunE: runStartMonitoring,
}

func init() {
	startMonitoringCmd.Flags().StringVar(&monitorFilterType, "filter-type", "", "Only show messages of this type (e.g. QUESTION, BLOCKED)")
	startMonitoringCmd.Flags().StringVar(&monitorFilterAgent, "filter-agent", "", "Only show messages sent by this agent")
	startMonitoringCmd.Flags().BoolVar(&monitorNoTmux, "no-tmux", false, "Skip asking the backend for a dedicated monitor pane")

	rootCmd.AddCommand(startMonitoringCmd)
}

func runStartMonitoring(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}

	if !monitorNoTmux {
		if creator, ok := a.backend.(backend.MonitorPaneCreator); ok {
			if err := creator.CreateMonitorPane(cmd.Context(), "swarm-monitor"); err != nil {
				fmt.Fprintf(os.Stderr, "monitor pane unavailable: %v\n", err)
			}
		}
	}

	records, err := readMessageLog(a.store.Path("agent_messages.log"))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if monitorFilterType != "" && rec.Type != monitorFilterType {
			continue
		}
		if monitorFilterAgent != "" && rec.Sender != monitorFilterAgent {
			continue
		}
		fmt.Println(messaging.FormatLine(rec.Sender, rec.Timestamp, rec.Type, rec.Content))
	}
	return nil
}

// logRecord mirrors the JSON-line shape messaging.Core appends to
// agent_messages.log. It's redeclared here, rather than exported from
// messaging, since the CLI only ever reads the log back for display.
type logRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
}

func readMessageLog(path string) ([]logRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []logRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec logRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

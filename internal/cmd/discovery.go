package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/style"
)

var (
	discoverWatch          bool
	discoverIntervalSec    int
	discoverStaleThreshold int
)

var discoverAgentsCmd = &cobra.Command{
	Use:     "discover-agents",
	GroupID: GroupDiscovery,
	Short:   "Refresh ACTIVE_AGENTS.json from the terminal backend",
	Long: `Enumerate peer agent processes through the selected terminal backend
and write the refreshed set to ACTIVE_AGENTS.json, reusing each peer's
previously assigned agent ID where the backend identifier is unchanged.

With --watch, keeps refreshing on backend changes (or the --interval
fallback tick) until interrupted.`,
	RunE: runDiscoverAgents,
}

var listAgentsCmd = &cobra.Command{
	Use:     "list-agents",
	GroupID: GroupDiscovery,
	Short:   "List the current contents of ACTIVE_AGENTS.json",
	RunE:    runListAgents,
}

func init() {
	discoverAgentsCmd.Flags().BoolVar(&discoverWatch, "watch", false, "Keep refreshing until interrupted")
	discoverAgentsCmd.Flags().IntVar(&discoverIntervalSec, "interval", 10, "Fallback refresh interval in seconds, used with --watch")
	discoverAgentsCmd.Flags().IntVar(&discoverStaleThreshold, "stale-threshold", 0, "Override the configured stale threshold in seconds")

	rootCmd.AddCommand(discoverAgentsCmd, listAgentsCmd)
}

func runDiscoverAgents(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}

	sessionName := os.Getenv("CLAUDESWARM_SESSION")

	if discoverStaleThreshold > 0 {
		a.discovery = discovery.New(a.store, a.backend, time.Duration(discoverStaleThreshold)*time.Second, 0)
	}

	if !discoverWatch {
		agents, err := a.discovery.Refresh(cmd.Context(), a.root, sessionName)
		if err != nil {
			return err
		}
		return renderAgents(a, agents)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ch := a.discovery.Watch(ctx, a.root, sessionName, time.Duration(discoverIntervalSec)*time.Second)
	for ev := range ch {
		if ev.Err != nil {
			fmt.Fprintf(os.Stderr, "refresh error: %v\n", ev.Err)
			continue
		}
		if err := renderAgents(a, ev.Agents); err != nil {
			return err
		}
	}
	return nil
}

func runListAgents(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	agents, err := a.discovery.Load()
	if err != nil {
		return err
	}
	return renderAgents(a, agents)
}

func renderAgents(a *app, agents []discovery.Agent) error {
	if a.json {
		return printJSON(agents)
	}

	t := style.NewTable(
		style.Column{Name: "ID", Width: 12},
		style.Column{Name: "STATUS", Width: 8},
		style.Column{Name: "PID", Width: 8, Align: style.AlignRight},
		style.Column{Name: "BACKEND", Width: 10},
		style.Column{Name: "LAST SEEN", Width: 20},
	)
	for _, ag := range agents {
		t.AddRow(ag.ID, ag.Status, fmt.Sprintf("%d", ag.PID), ag.Backend, ag.LastSeen.Format("2006-01-02 15:04:05"))
	}
	fmt.Print(t.Render())
	return nil
}

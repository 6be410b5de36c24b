package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/style"
)

var conflictCmd = &cobra.Command{
	Use:     "conflict",
	GroupID: GroupConflicts,
	Short:   "Open, resolve, and negotiate contested-resource conflicts",
	RunE:    requireSubcommand,
}

var conflictOpenCmd = &cobra.Command{
	Use:   "open <requester> <holder> <resource>",
	Short: "Log a denied file-lock acquisition as a conflict",
	Args:  cobra.ExactArgs(3),
	RunE:  runConflictOpen,
}

var conflictResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <requester> <holder>",
	Short: "Apply the priority/seniority/yield strategy chain to a conflict",
	Args:  cobra.ExactArgs(3),
	RunE:  runConflictResolve,
}

var conflictNegotiateCmd = &cobra.Command{
	Use:   "negotiate <conflict-id> <agent-id> <action>",
	Short: "Post one round of the bounded negotiation protocol (yield, insist, compromise)",
	Args:  cobra.ExactArgs(3),
	RunE:  runConflictNegotiate,
}

var conflictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged conflicts",
	RunE:  runConflictList,
}

func init() {
	conflictCmd.AddCommand(conflictOpenCmd, conflictResolveCmd, conflictNegotiateCmd, conflictListCmd)
	rootCmd.AddCommand(conflictCmd)
}

func runConflictOpen(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.conflicts.Open(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(c)
	}
	fmt.Printf("opened conflict %s over %s (%s vs %s)\n", c.ConflictID, c.Resource, args[0], args[1])
	return nil
}

func runConflictResolve(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.conflicts.Resolve(args[0], args[1], args[2], false)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(c)
	}
	if c.Resolution != nil {
		fmt.Printf("resolved %s via %s: %s wins\n", c.ConflictID, c.Resolution.Strategy, c.Resolution.Winner)
	} else {
		fmt.Printf("%s still unresolved\n", c.ConflictID)
	}
	return nil
}

func runConflictNegotiate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, settled, err := a.conflicts.Negotiate(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"conflict": c, "settled": settled})
	}
	if settled {
		fmt.Printf("%s settled\n", c.ConflictID)
	} else {
		fmt.Printf("%s round recorded, awaiting more actions\n", c.ConflictID)
	}
	return nil
}

func runConflictList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	conflicts, err := a.conflicts.Load()
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(conflicts)
	}

	t := style.NewTable(
		style.Column{Name: "ID", Width: 36},
		style.Column{Name: "RESOURCE", Width: 30},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "AGENTS", Width: 24},
	)
	for _, c := range conflicts {
		t.AddRow(c.ConflictID, c.Resource, c.Status, fmt.Sprint(c.AgentsInvolved))
	}
	fmt.Print(t.Render())
	return nil
}

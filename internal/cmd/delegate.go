package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	delegateExclude       []string
	delegateRequiredTools []string
	delegateDryRun        bool
)

var delegateCmd = &cobra.Command{
	Use:     "delegate <task-id>",
	GroupID: GroupDelegation,
	Short:   "Find (and, unless --dry-run, assign) the best-qualified agent for a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelegate,
}

func init() {
	delegateCmd.Flags().StringSliceVar(&delegateExclude, "exclude", nil, "Agent IDs to exclude from consideration")
	delegateCmd.Flags().StringSliceVar(&delegateRequiredTools, "require-tool", nil, "Tool the candidate must have (repeatable)")
	delegateCmd.Flags().BoolVar(&delegateDryRun, "dry-run", false, "Score and report candidates without assigning")

	rootCmd.AddCommand(delegateCmd)
}

func runDelegate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Get(args[0])
	if err != nil {
		return err
	}

	if delegateDryRun {
		candidates, ok, err := a.delegate.FindBest(t, delegateExclude, delegateRequiredTools)
		if err != nil {
			return err
		}
		if a.json {
			return printJSON(map[string]any{"found": ok, "candidates": candidates})
		}
		if !ok || len(candidates) == 0 {
			fmt.Println("no eligible candidate found")
			return nil
		}
		for _, c := range candidates {
			fmt.Printf("%s score=%.3f\n", c.AgentID, c.Score)
		}
		return nil
	}

	candidates, ok, err := a.delegate.FindBest(t, delegateExclude, delegateRequiredTools)
	if err != nil {
		return err
	}
	if !ok || len(candidates) == 0 {
		return fmt.Errorf("no eligible candidate found for task %s", t.TaskID)
	}
	updated, entry, err := a.delegate.Delegate(t, candidates[0].AgentID, delegateRequiredTools)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"task": updated, "delegation": entry})
	}
	fmt.Printf("delegated %s to %s (score=%.3f)\n", t.TaskID, entry.AgentID, entry.Score)
	return nil
}

package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	GroupID: GroupLearning,
	Short:   "Inspect and update an agent's persistent memory",
	RunE:    requireSubcommand,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Show an agent's memory file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryShow,
}

var memoryRememberTaskCmd = &cobra.Command{
	Use:   "remember-task <agent-id> <task-id> <objective> <status>",
	Short: "Append a completed task to the agent's task-history ring",
	Args:  cobra.ExactArgs(4),
	RunE:  runMemoryRememberTask,
}

var memoryLearnPatternCmd = &cobra.Command{
	Use:   "learn-pattern <agent-id> <description> <effectiveness>",
	Short: "Record or reinforce a learned behavioral pattern",
	Args:  cobra.ExactArgs(3),
	RunE:  runMemoryLearnPattern,
}

var memoryRecordInteractionCmd = &cobra.Command{
	Use:   "record-interaction <agent-id> <other-agent> <positive>",
	Short: "Blend a positive/negative interaction into a relationship score",
	Args:  cobra.ExactArgs(3),
	RunE:  runMemoryRecordInteraction,
}

func init() {
	memoryCmd.AddCommand(memoryShowCmd, memoryRememberTaskCmd, memoryLearnPatternCmd, memoryRecordInteractionCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	m, err := a.memory.Load(args[0])
	if err != nil {
		return err
	}
	return printJSON(m)
}

func runMemoryRememberTask(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	m, err := a.memory.RememberTask(args[0], memory.TaskMemory{
		TaskID:    args[1],
		Objective: args[2],
		Status:    args[3],
	})
	if err != nil {
		return err
	}
	return printJSON(m)
}

func runMemoryLearnPattern(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	effectiveness, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return err
	}
	m, err := a.memory.LearnPattern(args[0], args[1], effectiveness)
	if err != nil {
		return err
	}
	return printJSON(m)
}

func runMemoryRecordInteraction(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	positive, err := strconv.ParseBool(args[2])
	if err != nil {
		return err
	}
	m, err := a.memory.RecordInteraction(args[0], args[1], positive)
	if err != nil {
		return err
	}
	return printJSON(m)
}

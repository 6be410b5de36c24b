package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var learningCmd = &cobra.Command{
	Use:     "learning",
	GroupID: GroupLearning,
	Short:   "Inspect and record per-agent/per-skill performance statistics",
	RunE:    requireSubcommand,
}

var learningShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Show an agent's aggregate stats",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearningShow,
}

var learningStartedCmd = &cobra.Command{
	Use:   "record-started <agent-id>",
	Short: "Record that an agent started a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearningStarted,
}

var (
	learningCompletedSkills []string
)

var learningCompletedCmd = &cobra.Command{
	Use:   "record-completed <agent-id> <success> <seconds>",
	Short: "Record a task's outcome, blending success rate and completion time as an EMA",
	Args:  cobra.ExactArgs(3),
	RunE:  runLearningCompleted,
}

func init() {
	learningCompletedCmd.Flags().StringSliceVar(&learningCompletedSkills, "skill", nil, "Skill exercised by the completed task (repeatable)")

	learningCmd.AddCommand(learningShowCmd, learningStartedCmd, learningCompletedCmd)
	rootCmd.AddCommand(learningCmd)
}

func runLearningShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	stats, err := a.learning.AgentStats(args[0])
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runLearningStarted(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	stats, err := a.learning.RecordTaskStarted(args[0])
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runLearningCompleted(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	success, err := strconv.ParseBool(args[1])
	if err != nil {
		return err
	}
	seconds, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return err
	}
	stats, err := a.learning.RecordTaskCompleted(args[0], learningCompletedSkills, success, time.Duration(seconds*float64(time.Second)))
	if err != nil {
		return err
	}
	return printJSON(stats)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/style"
	"github.com/claude-swarm/swarm/internal/task"
)

var (
	taskCreatePriority    string
	taskCreateContext     string
	taskCreateConstraints []string
	taskCreateFiles       []string
	taskCreateTags        []string
	taskCreateParent      string

	taskListStatus     string
	taskListAssignedTo string
	taskListContext    string
	taskListPriority   string
	taskListAll        bool
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: GroupTasks,
	Short:   "Manage the shared task state machine",
	RunE:    requireSubcommand,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <created-by> <objective>",
	Short: "Create a new pending task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskCreate,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <agent-id> [message]",
	Short: "Assign a pending or blocked task to an agent",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runTaskAssign,
}

var taskTransitionCmd = &cobra.Command{
	Use:   "transition <task-id> <status> <agent-id> [message]",
	Short: "Move a task to a new status",
	Args:  cobra.RangeArgs(3, 4),
	RunE:  runTaskTransition,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id> <agent-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskComplete,
}

var taskFailCmd = &cobra.Command{
	Use:   "fail <task-id> <agent-id> <error>",
	Short: "Mark a task failed",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskFail,
}

var taskBlockCmd = &cobra.Command{
	Use:   "block <task-id> <agent-id> <message> [blocked-by...]",
	Short: "Mark a task blocked",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runTaskBlock,
}

var taskUnblockCmd = &cobra.Command{
	Use:   "unblock <task-id> <agent-id> [message]",
	Short: "Return a blocked task to assigned or pending",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runTaskUnblock,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id> <agent-id> [message]",
	Short: "Cancel a task",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runTaskCancel,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task including its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks matching a filter",
	RunE:  runTaskList,
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize task counts by status and priority",
	RunE:  runTaskStats,
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskCreatePriority, "priority", task.PriorityNormal, "critical, high, normal, or low")
	taskCreateCmd.Flags().StringVar(&taskCreateContext, "context", "", "Context ID this task belongs to")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateConstraints, "constraint", nil, "Constraint (repeatable)")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateFiles, "file", nil, "Relevant file path (repeatable)")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateTags, "tag", nil, "Tag (repeatable)")
	taskCreateCmd.Flags().StringVar(&taskCreateParent, "parent", "", "Parent task ID, for subtasks")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status")
	taskListCmd.Flags().StringVar(&taskListAssignedTo, "assigned-to", "", "Filter by assignee")
	taskListCmd.Flags().StringVar(&taskListContext, "context", "", "Filter by context ID")
	taskListCmd.Flags().StringVar(&taskListPriority, "priority", "", "Filter by priority")
	taskListCmd.Flags().BoolVar(&taskListAll, "include-terminal", false, "Include completed/cancelled tasks")

	taskCmd.AddCommand(taskCreateCmd, taskAssignCmd, taskTransitionCmd, taskCompleteCmd, taskFailCmd,
		taskBlockCmd, taskUnblockCmd, taskCancelCmd, taskShowCmd, taskListCmd, taskStatsCmd)
	rootCmd.AddCommand(taskCmd)
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Create(task.CreateInput{
		Objective:    args[1],
		Priority:     taskCreatePriority,
		CreatedBy:    args[0],
		ContextID:    taskCreateContext,
		Constraints:  taskCreateConstraints,
		Files:        taskCreateFiles,
		Tags:         taskCreateTags,
		ParentTaskID: taskCreateParent,
	})
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Assign(args[0], args[1], optionalArg(args, 2))
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskTransition(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Transition(args[0], args[1], args[2], optionalArg(args, 3))
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Complete(args[0], args[1], nil)
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskFail(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Fail(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskBlock(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	var blockedBy []string
	if len(args) > 3 {
		blockedBy = args[3:]
	}
	t, err := a.tasks.Block(args[0], args[1], args[2], blockedBy)
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskUnblock(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Unblock(args[0], args[1], optionalArg(args, 2))
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Cancel(args[0], args[1], optionalArg(args, 2))
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.tasks.Get(args[0])
	if err != nil {
		return err
	}
	return renderTask(a, t)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	tasks, err := a.tasks.List(task.Filter{
		Status:          taskListStatus,
		AssignedTo:      taskListAssignedTo,
		ContextID:       taskListContext,
		Priority:        taskListPriority,
		IncludeTerminal: taskListAll,
	})
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(tasks)
	}

	t := style.NewTable(
		style.Column{Name: "ID", Width: 36},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "PRIORITY", Width: 8},
		style.Column{Name: "ASSIGNED", Width: 14},
		style.Column{Name: "OBJECTIVE", Width: 40},
	)
	for _, row := range tasks {
		t.AddRow(row.TaskID, row.Status, row.Priority, row.AssignedTo, row.Objective)
	}
	fmt.Print(t.Render())
	return nil
}

func runTaskStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	stats, err := a.tasks.Stats()
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func renderTask(a *app, t task.Task) error {
	if a.json {
		return printJSON(t)
	}
	fmt.Printf("%s [%s/%s] %s\n", t.TaskID, t.Status, t.Priority, t.Objective)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:     "context",
	GroupID: GroupContext,
	Short:   "Group related tasks, files, and decisions under a shared context",
	RunE:    requireSubcommand,
}

var contextCreateCmd = &cobra.Command{
	Use:   "create <created-by> <name> [description]",
	Short: "Create a new context",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runContextCreate,
}

var contextShowCmd = &cobra.Command{
	Use:   "show <context-id>",
	Short: "Show one context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextShow,
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	RunE:  runContextList,
}

var contextLinkTaskCmd = &cobra.Command{
	Use:   "link-task <context-id> <task-id>",
	Short: "Associate a task with a context",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextLinkTask,
}

var contextTouchFileCmd = &cobra.Command{
	Use:   "touch-file <context-id> <path>",
	Short: "Record that a file is relevant to a context",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextTouchFile,
}

var contextRecordDecisionCmd = &cobra.Command{
	Use:   "record-decision <context-id> <agent-id> <summary>",
	Short: "Append a decision to a context's append-only log",
	Args:  cobra.ExactArgs(3),
	RunE:  runContextRecordDecision,
}

func init() {
	contextCmd.AddCommand(contextCreateCmd, contextShowCmd, contextListCmd, contextLinkTaskCmd, contextTouchFileCmd, contextRecordDecisionCmd)
	rootCmd.AddCommand(contextCmd)
}

func runContextCreate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.contexts.Create(args[1], optionalArg(args, 2), args[0])
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(c)
	}
	fmt.Printf("created context %s (%s)\n", c.ContextID, c.Name)
	return nil
}

func runContextShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.contexts.Get(args[0])
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runContextList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	contexts, err := a.contexts.List()
	if err != nil {
		return err
	}
	return printJSON(contexts)
}

func runContextLinkTask(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.contexts.LinkTask(args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runContextTouchFile(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.contexts.TouchFile(args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runContextRecordDecision(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.contexts.RecordDecision(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	return printJSON(c)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var coordinationCmd = &cobra.Command{
	Use:     "coordination",
	GroupID: GroupCoordination,
	Short:   "Read and edit the shared COORDINATION.md scratchpad",
	RunE:    requireSubcommand,
}

var coordinationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the full document",
	RunE:  runCoordinationShow,
}

var coordinationGetSectionCmd = &cobra.Command{
	Use:   "get-section <name>",
	Short: "Print one section's body",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoordinationGetSection,
}

var coordinationUpdateSectionCmd = &cobra.Command{
	Use:   "update-section <name> <content>",
	Short: "Replace a section's body, creating it if missing",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoordinationUpdateSection,
}

var coordinationAppendSectionCmd = &cobra.Command{
	Use:   "append-section <name> <text>",
	Short: "Append a line to a section's body, creating it if missing",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoordinationAppendSection,
}

func init() {
	coordinationCmd.AddCommand(coordinationShowCmd, coordinationGetSectionCmd, coordinationUpdateSectionCmd, coordinationAppendSectionCmd)
	rootCmd.AddCommand(coordinationCmd)
}

func runCoordinationShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	doc, err := a.coordinate.Read()
	if err != nil {
		return err
	}
	fmt.Print(doc)
	return nil
}

func runCoordinationGetSection(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	body, ok, err := a.coordinate.GetSection(args[0])
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"found": ok, "body": body})
	}
	if !ok {
		fmt.Printf("no section %q\n", args[0])
		return nil
	}
	fmt.Println(body)
	return nil
}

func runCoordinationUpdateSection(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	if err := a.coordinate.UpdateSection(args[0], args[1]); err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"updated": args[0]})
	}
	fmt.Printf("updated section %q\n", args[0])
	return nil
}

func runCoordinationAppendSection(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	if err := a.coordinate.AppendToSection(args[0], args[1]); err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"appended": args[0]})
	}
	fmt.Printf("appended to section %q\n", args[0])
	return nil
}

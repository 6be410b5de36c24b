package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/card"
	"github.com/claude-swarm/swarm/internal/style"
)

var (
	cardSkills          []string
	cardTools           []string
	cardSpecializations []string
	cardAvailability    string
)

var cardCmd = &cobra.Command{
	Use:     "card",
	GroupID: GroupDelegation,
	Short:   "Manage agent capability cards scored by delegation",
	RunE:    requireSubcommand,
}

var cardUpsertCmd = &cobra.Command{
	Use:   "upsert <agent-id> <name>",
	Short: "Create or replace an agent's capability card",
	Args:  cobra.ExactArgs(2),
	RunE:  runCardUpsert,
}

var cardGetCmd = &cobra.Command{
	Use:   "get <agent-id>",
	Short: "Show one agent's card",
	Args:  cobra.ExactArgs(1),
	RunE:  runCardGet,
}

var cardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered card",
	RunE:  runCardList,
}

var cardSetAvailabilityCmd = &cobra.Command{
	Use:   "set-availability <agent-id> <active|busy|offline>",
	Short: "Update an existing card's availability",
	Args:  cobra.ExactArgs(2),
	RunE:  runCardSetAvailability,
}

func init() {
	cardUpsertCmd.Flags().StringSliceVar(&cardSkills, "skill", nil, "Skill (repeatable)")
	cardUpsertCmd.Flags().StringSliceVar(&cardTools, "tool", nil, "Tool (repeatable)")
	cardUpsertCmd.Flags().StringSliceVar(&cardSpecializations, "specialization", nil, "Specialization (repeatable)")
	cardUpsertCmd.Flags().StringVar(&cardAvailability, "availability", card.AvailabilityActive, "active, busy, or offline")

	cardCmd.AddCommand(cardUpsertCmd, cardGetCmd, cardListCmd, cardSetAvailabilityCmd)
	rootCmd.AddCommand(cardCmd)
}

func runCardUpsert(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.cards.Upsert(card.Card{
		AgentID:         args[0],
		Name:            args[1],
		Skills:          cardSkills,
		Tools:           cardTools,
		Specializations: cardSpecializations,
		Availability:    cardAvailability,
	})
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runCardGet(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.cards.Get(args[0])
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runCardList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	cards, err := a.cards.All()
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(cards)
	}

	t := style.NewTable(
		style.Column{Name: "AGENT", Width: 16},
		style.Column{Name: "AVAILABILITY", Width: 12},
		style.Column{Name: "SKILLS", Width: 30},
	)
	for _, c := range cards {
		t.AddRow(c.AgentID, c.Availability, fmt.Sprint(c.Skills))
	}
	fmt.Print(t.Render())
	return nil
}

func runCardSetAvailability(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	c, err := a.cards.SetAvailability(args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(c)
}

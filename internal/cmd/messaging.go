package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/style"
)

var (
	sendRecipients []string
	sendType       string
	sendBroadcast  bool
	sendRequireAck bool
)

var sendMessageCmd = &cobra.Command{
	Use:     "send-message <sender> <content>",
	GroupID: GroupMessaging,
	Short:   "Send a message to one or more recipients, or broadcast it",
	Args:    cobra.ExactArgs(2),
	RunE:    runSendMessage,
}

var checkPendingAcksCmd = &cobra.Command{
	Use:     "check-pending-acks [agent-id]",
	GroupID: GroupMessaging,
	Short:   "List pending acknowledgments, optionally for one sender",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runCheckPendingAcks,
}

var ackMessageCmd = &cobra.Command{
	Use:     "ack-message <msg-id> <agent-id>",
	GroupID: GroupMessaging,
	Short:   "Acknowledge receipt of a message",
	Args:    cobra.ExactArgs(2),
	RunE:    runAckMessage,
}

var processRetriesCmd = &cobra.Command{
	Use:     "process-retries",
	GroupID: GroupMessaging,
	Short:   "Resend any due pending-ack messages and escalate exhausted ones",
	RunE:    runProcessRetries,
}

func init() {
	sendMessageCmd.Flags().StringSliceVar(&sendRecipients, "to", nil, "Recipient agent IDs (repeatable, or comma-separated)")
	sendMessageCmd.Flags().StringVar(&sendType, "type", "INFO", "Message type: QUESTION, REVIEW-REQUEST, BLOCKED, COMPLETED, CHALLENGE, INFO, ACK")
	sendMessageCmd.Flags().BoolVar(&sendBroadcast, "broadcast", false, "Send to every active agent instead of --to recipients")
	sendMessageCmd.Flags().BoolVar(&sendRequireAck, "require-ack", false, "Track this send in PENDING_ACKS.json and retry until acknowledged")

	rootCmd.AddCommand(sendMessageCmd, checkPendingAcksCmd, ackMessageCmd, processRetriesCmd)
}

func runSendMessage(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	sender, content := args[0], args[1]

	if sendRequireAck {
		if sendBroadcast || len(sendRecipients) != 1 {
			return fmt.Errorf("--require-ack needs exactly one --to recipient")
		}
		msgID, err := a.ack.SendWithAck(cmd.Context(), sender, sendRecipients[0], sendType, content, a.cfg.FirstRetryAfter())
		if err != nil {
			return err
		}
		if a.json {
			return printJSON(map[string]any{"msg_id": msgID, "requires_ack": true})
		}
		fmt.Printf("sent %s (requires ack)\n", msgID)
		return nil
	}

	if sendBroadcast {
		status, err := a.messaging.Broadcast(cmd.Context(), sender, sendType, content, true)
		if err != nil {
			return err
		}
		if a.json {
			return printJSON(status)
		}
		fmt.Printf("broadcast delivered to %d/%d agents\n", countTrue(status), len(status))
		return nil
	}

	msg, status, err := a.messaging.Send(cmd.Context(), sender, sendRecipients, sendType, content)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"message": msg, "delivery_status": status})
	}
	fmt.Printf("sent %s\n", msg.MsgID)
	return nil
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}

func runCheckPendingAcks(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	agentID := ""
	if len(args) == 1 {
		agentID = args[0]
	}
	pending, err := a.ack.CheckPending(agentID)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(pending)
	}

	t := style.NewTable(
		style.Column{Name: "MSG ID", Width: 36},
		style.Column{Name: "RECIPIENT", Width: 16},
		style.Column{Name: "RETRIES", Width: 8, Align: style.AlignRight},
		style.Column{Name: "NEXT RETRY", Width: 20},
	)
	for _, p := range pending {
		t.AddRow(p.MsgID, p.RecipientID, fmt.Sprintf("%d", p.RetryCount), p.NextRetryAt.Format(time.RFC3339))
	}
	fmt.Print(t.Render())
	return nil
}

func runAckMessage(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	found, err := a.ack.ReceiveAck(args[0], args[1])
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"acknowledged": found})
	}
	if found {
		fmt.Printf("acknowledged %s\n", args[0])
	} else {
		fmt.Printf("no pending ack for %s\n", args[0])
	}
	return nil
}

func runProcessRetries(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	n, err := a.ack.ProcessRetries(cmd.Context())
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"processed": n})
	}
	fmt.Printf("processed %d due row(s)\n", n)
	return nil
}

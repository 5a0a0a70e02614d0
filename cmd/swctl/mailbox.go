package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/mailbox"
	"github.com/mnthe/agentcore/internal/model"
)

var (
	mailboxFrom    string
	mailboxTo      string
	mailboxType    string
	mailboxPayload string

	mailboxPollTimeoutMs int
	mailboxPollType      string
)

var mailboxCmd = &cobra.Command{
	Use:     "mailbox",
	Aliases: []string{"inbox", "mail"},
	Short:   "Per-recipient inboxes for inter-worker messaging",
}

var mailboxSendCmd = &cobra.Command{
	Use:   "send <project> <team>",
	Short: "Send a message to a recipient's inbox",
	Args:  cobra.ExactArgs(2),
	RunE:  runMailboxSend,
}

var mailboxPollCmd = &cobra.Command{
	Use:   "poll <project> <team> <recipient>",
	Short: "Poll a recipient's inbox, marking returned messages read",
	Args:  cobra.ExactArgs(3),
	RunE:  runMailboxPoll,
}

func init() {
	rootCmd.AddCommand(mailboxCmd)
	mailboxCmd.AddCommand(mailboxSendCmd, mailboxPollCmd)

	mailboxSendCmd.Flags().StringVar(&mailboxFrom, "from", "", "sender id")
	mailboxSendCmd.Flags().StringVar(&mailboxTo, "to", "", "recipient id (required)")
	mailboxSendCmd.Flags().StringVar(&mailboxType, "type", string(model.MessageText), "message type")
	mailboxSendCmd.Flags().StringVar(&mailboxPayload, "payload", "", "JSON-encoded payload")
	_ = mailboxSendCmd.MarkFlagRequired("to")

	mailboxPollCmd.Flags().IntVar(&mailboxPollTimeoutMs, "timeout-ms", 0, "poll timeout in milliseconds (default 30000)")
	mailboxPollCmd.Flags().StringVar(&mailboxPollType, "type", "", "filter by message type")
}

func mailboxStore() *mailbox.Mailbox {
	return mailbox.New(Resolver(), KernelStore())
}

func runMailboxSend(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]

	var payload any
	if mailboxPayload != "" {
		if err := json.Unmarshal([]byte(mailboxPayload), &payload); err != nil {
			return fmt.Errorf("parse --payload: %w", err)
		}
	}

	if GetDryRun() {
		printOK("would send %s message from %s to %s", mailboxType, mailboxFrom, mailboxTo)
		return nil
	}

	msg, err := mailboxStore().Send(project, team, mailbox.SendRequest{
		From:    mailboxFrom,
		To:      mailboxTo,
		Type:    model.MessageType(mailboxType),
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(msg) },
		func() { printOK("message %s sent to %s", msg.ID, msg.To) },
	)
}

func runMailboxPoll(cmd *cobra.Command, args []string) error {
	project, team, recipient := args[0], args[1], args[2]

	if GetDryRun() {
		printOK("would poll inbox %s, marking matched messages read", recipient)
		return nil
	}

	messages, err := mailboxStore().Poll(project, team, recipient, mailbox.PollRequest{
		TimeoutMs: mailboxPollTimeoutMs,
		Type:      model.MessageType(mailboxPollType),
	})
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(messages) },
		func() {
			w := newTable()
			fmt.Fprintln(w, "ID\tFROM\tTYPE\tTIMESTAMP")
			for _, m := range messages {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.From, m.Type, m.Timestamp.Format("2006-01-02T15:04:05Z"))
			}
			_ = w.Flush()
			fmt.Printf("%d message(s)\n", len(messages))
		},
	)
}

package cli

import (
	"fmt"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/spf13/cobra"
)

var readyCmd = &cobra.Command{
	Use:   "ready <id>",
	Short: "Sign a draft through the local agent and mark it ready",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(models.StatusReady),
}

var draftCmd = &cobra.Command{
	Use:   "draft <id>",
	Short: "Send a ready or rejected document back to draft",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(models.StatusDraft),
}

var submitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Submit a ready document to the tax authority",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(models.StatusAwaitingClearance),
}

var checkCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Poll the clearance status of a submitted document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := bootstrap()
		if err != nil {
			return err
		}
		defer sess.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := sess.Open(cmd.Context(), id); err != nil {
			return err
		}
		outcome, err := sess.CheckClearance(cmd.Context(), models.CommittedRef(id))
		if err != nil {
			return err
		}
		switch outcome.State {
		case models.ClearanceValidated:
			fmt.Println("Validated by the tax authority")
		case models.ClearanceRejected:
			fmt.Printf("Rejected: %s\n", outcome.RejectionReason)
		default:
			fmt.Println("Still pending validation, check again later")
		}
		return nil
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "agent-status <id>",
	Short: "Probe the local signing agent for the opened document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := bootstrap()
		if err != nil {
			return err
		}
		defer sess.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := sess.Open(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println("Agent:", sess.CheckAgent(cmd.Context()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readyCmd, draftCmd, submitCmd, checkCmd, agentStatusCmd)
}

func transitionRunner(target models.Status) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sess, _, err := bootstrap()
		if err != nil {
			return err
		}
		defer sess.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := sess.Open(cmd.Context(), id); err != nil {
			return err
		}
		doc, err := sess.ChangeStatus(cmd.Context(), models.CommittedRef(id), target)
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", doc.Number, doc.Status)
		return nil
	}
}

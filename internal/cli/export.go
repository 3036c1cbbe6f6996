package cli

import (
	"fmt"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Fetch a download link for a document",
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
		format, _ := cmd.Flags().GetString("format")
		url, err := sess.Export(cmd.Context(), models.CommittedRef(id), format)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("format", "pdf", "Export format: pdf or json")
}

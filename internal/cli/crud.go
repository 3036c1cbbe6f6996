package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one document in full",
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
		doc, err := sess.Open(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printDocument(doc)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document from a JSON file",
	Example: `  dgi-console create --file draft.json
  cat draft.json | dgi-console create --file -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := bootstrap()
		if err != nil {
			return err
		}
		defer sess.Close()

		doc, err := readDocumentFlag(cmd)
		if err != nil {
			return err
		}
		created, err := sess.Create(cmd.Context(), doc)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (id %d)\n", created.Number, created.Ref.ID)
		return printDocument(created)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace the editable fields of a draft from a JSON file",
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
		doc, err := readDocumentFlag(cmd)
		if err != nil {
			return err
		}
		doc.Ref = models.CommittedRef(id)
		updated, err := sess.UpdateFields(cmd.Context(), doc)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", updated.Number)
		return printDocument(updated)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a draft document",
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
		if err := sess.Delete(cmd.Context(), models.CommittedRef(id)); err != nil {
			return err
		}
		fmt.Printf("Deleted document %d\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd, createCmd, editCmd, deleteCmd)

	createCmd.Flags().String("file", "", "JSON document file, or - for stdin")
	createCmd.MarkFlagRequired("file")
	editCmd.Flags().String("file", "", "JSON document file, or - for stdin")
	editCmd.MarkFlagRequired("file")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}

// readDocumentFlag decodes a document payload from --file (or stdin with -).
func readDocumentFlag(cmd *cobra.Command) (*models.Document, error) {
	path, _ := cmd.Flags().GetString("file")

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening document file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var payload models.DocumentPayload
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding document file: %w", err)
	}
	doc := payload.ToDocument()
	doc.ApplyTotals()
	return doc, nil
}

func printDocument(doc *models.Document) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(models.PayloadFromDocument(doc))
}

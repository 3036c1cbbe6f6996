package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hypernova-labs/dgi-console/internal/backend"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents with filters, sorting and pagination",
	Example: `  dgi-console list --status DRAFT
  dgi-console list --search acme --sort total --direction desc
  dgi-console list --date-from 2026-01-01 --date-to 2026-03-31 --page 2`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("status", "", "Filter by status")
	listCmd.Flags().String("search", "", "Match against number and customer name")
	listCmd.Flags().String("date-from", "", "Earliest document date (YYYY-MM-DD)")
	listCmd.Flags().String("date-to", "", "Latest document date (YYYY-MM-DD)")
	listCmd.Flags().Float64("amount-min", 0, "Minimum total")
	listCmd.Flags().Float64("amount-max", 0, "Maximum total")
	listCmd.Flags().String("sort", "date", "Sort field: date, number, total, status, customer")
	listCmd.Flags().String("direction", "desc", "Sort direction: asc or desc")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("page-size", 20, "Items per page")
}

func runList(cmd *cobra.Command, args []string) error {
	sess, _, err := bootstrap()
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := sess.Refresh(cmd.Context(), q); err != nil {
		return err
	}

	view := sess.List()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tDATE\tCUSTOMER\tTOTAL\tSTATUS")
	for _, item := range view.Items {
		id := fmt.Sprintf("%d", item.Ref.ID)
		if item.Ref.IsPending() {
			id = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			id, item.Number, item.Date.Format("2006-01-02"), item.CustomerName, item.Total, item.Status)
	}
	w.Flush()

	p := view.Pagination
	fmt.Printf("\nPage %d of %d (%d documents)\n", p.Page, p.TotalPages, p.TotalItems)
	return nil
}

func queryFromFlags(cmd *cobra.Command) (backend.ListQuery, error) {
	var q backend.ListQuery

	status, _ := cmd.Flags().GetString("status")
	q.Status = models.Status(status)
	q.Search, _ = cmd.Flags().GetString("search")
	q.SortField, _ = cmd.Flags().GetString("sort")
	direction, _ := cmd.Flags().GetString("direction")
	q.SortDirection = backend.SortDirection(direction)
	q.Page, _ = cmd.Flags().GetInt("page")
	q.PageSize, _ = cmd.Flags().GetInt("page-size")

	if raw, _ := cmd.Flags().GetString("date-from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return q, fmt.Errorf("invalid --date-from: %w", err)
		}
		q.DateFrom = &t
	}
	if raw, _ := cmd.Flags().GetString("date-to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return q, fmt.Errorf("invalid --date-to: %w", err)
		}
		q.DateTo = &t
	}
	if cmd.Flags().Changed("amount-min") {
		v, _ := cmd.Flags().GetFloat64("amount-min")
		q.AmountMin = &v
	}
	if cmd.Flags().Changed("amount-max") {
		v, _ := cmd.Flags().GetFloat64("amount-max")
		q.AmountMax = &v
	}
	return q, nil
}

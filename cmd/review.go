package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/pipeline"
	"github.com/docufill/fieldcalc/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the human review queue",
	Long:  "Commands for listing review items and resolving them by accepting or rejecting a value.",
}

// -- review list --

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		document, _ := cmd.Flags().GetString("document")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := st.ListReviewItems(ctx, store.ReviewFilter{
			DocumentID: document,
			Status:     model.ReviewStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "review list")
		}

		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No review items found.")
			return nil
		}

		formatReviewList(os.Stdout, items)
		return nil
	},
}

// -- review resolve --

var (
	reviewAccept bool
	reviewReject bool
	reviewValue  float64
	reviewNote   string
)

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Accept or reject a review item",
	Long:  "Accepting writes the value back to the document as a manual entry. Without --value, the top-priority candidate is accepted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if reviewAccept == reviewReject {
			return eris.New("exactly one of --accept or --reject is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status := model.ReviewAccepted
		if reviewReject {
			status = model.ReviewRejected
		}

		var value *float64
		if cmd.Flags().Changed("value") {
			value = &reviewValue
		}

		item, err := pipeline.ResolveReview(ctx, st, args[0], status, value, reviewNote)
		if err != nil {
			return eris.Wrap(err, "review resolve")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

func init() {
	reviewListCmd.Flags().String("document", "", "filter by document ID")
	reviewListCmd.Flags().String("status", "open", "filter by status (open, accepted, rejected; empty for all)")
	reviewListCmd.Flags().Int("limit", 50, "max number of items to display")

	reviewResolveCmd.Flags().BoolVar(&reviewAccept, "accept", false, "accept the item")
	reviewResolveCmd.Flags().BoolVar(&reviewReject, "reject", false, "reject the item")
	reviewResolveCmd.Flags().Float64Var(&reviewValue, "value", 0, "value to accept (default: top-priority candidate)")
	reviewResolveCmd.Flags().StringVar(&reviewNote, "note", "", "note to record with the resolution")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
	rootCmd.AddCommand(reviewCmd)
}

// formatReviewList writes a tabular list of review items to w.
func formatReviewList(out io.Writer, items []model.ReviewItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOC\tFIELD\tREASON\tCANDIDATES\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t---\t-----\t------\t----------\t------\t-------")

	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(it.ID),
			truncateID(it.DocumentID),
			it.FieldKey,
			it.Reason,
			formatCandidates(it.Candidates),
			it.Status,
			it.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatCandidates renders candidate values compactly, preferred first.
func formatCandidates(cands []model.ReviewCandidate) string {
	if len(cands) == 0 {
		return "-"
	}
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = fmt.Sprintf("%g", c.Value)
	}
	return strings.Join(parts, " / ")
}

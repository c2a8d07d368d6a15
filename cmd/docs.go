package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/store"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect filled documents",
	Long:  "Commands for listing and viewing document fill results.",
}

// -- docs list --

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
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

		status, _ := cmd.Flags().GetString("status")
		schemaName, _ := cmd.Flags().GetString("schema-name")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.DocumentFilter{
			Status:     model.DocumentStatus(status),
			SchemaName: schemaName,
			Limit:      limit,
			Offset:     offset,
		}

		docs, err := st.ListDocuments(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "docs list")
		}

		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		formatDocsList(os.Stdout, docs)
		return nil
	},
}

// -- docs show --

var docsShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Show a document with its field values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		doc, err := st.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "docs show")
		}
		values, err := st.ListValues(ctx, doc.ID)
		if err != nil {
			return eris.Wrap(err, "docs show values")
		}

		out := struct {
			Document *model.Document    `json:"document"`
			Values   []model.FieldValue `json:"values"`
		}{doc, values}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// -- docs stats --

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate fill statistics",
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

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.DocumentFilter{}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}
		filter.Limit = 10000 // high limit for stats

		docs, err := st.ListDocuments(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "docs stats")
		}

		stats := computeDocStats(docs)
		formatDocStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	docsListCmd.Flags().String("status", "", "filter by document status (received, processing, filled, failed)")
	docsListCmd.Flags().String("schema-name", "", "filter by schema name")
	docsListCmd.Flags().Int("limit", 50, "max number of documents to display")
	docsListCmd.Flags().Int("offset", 0, "number of documents to skip")

	docsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsStatsCmd)
	rootCmd.AddCommand(docsCmd)
}

// docStats holds aggregate statistics computed from a set of documents.
type docStats struct {
	Total       int
	Filled      int
	Failed      int
	InFlight    int
	Resolved    int
	NeedsReview int
	AvgPasses   float64
}

// computeDocStats computes aggregate statistics from a list of documents.
func computeDocStats(docs []model.Document) docStats {
	var s docStats
	s.Total = len(docs)

	var totalPasses, passCount int

	for _, d := range docs {
		switch d.Status {
		case model.DocumentStatusFilled:
			s.Filled++
		case model.DocumentStatusFailed:
			s.Failed++
		default:
			s.InFlight++
		}
		if d.Report != nil {
			s.Resolved += d.Report.Resolved
			s.NeedsReview += d.Report.NeedsReview
			totalPasses += d.Report.Passes
			passCount++
		}
	}

	if passCount > 0 {
		s.AvgPasses = float64(totalPasses) / float64(passCount)
	}
	return s
}

// formatDocStats writes aggregate stats to w.
func formatDocStats(out io.Writer, s docStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total documents:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Filled:\t%d\n", s.Filled)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.InFlight)
	_, _ = fmt.Fprintf(w, "Fields resolved:\t%d\n", s.Resolved)
	_, _ = fmt.Fprintf(w, "Fields for review:\t%d\n", s.NeedsReview)
	if s.AvgPasses > 0 {
		_, _ = fmt.Fprintf(w, "Avg passes:\t%.1f\n", s.AvgPasses)
	}
	_ = w.Flush()
}

// formatDocsList writes a tabular list of documents to w.
func formatDocsList(out io.Writer, docs []model.Document) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSCHEMA\tSTATUS\tRESOLVED\tREVIEW\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t--------\t------\t-------")

	for _, d := range docs {
		resolved, review := "-", "-"
		if d.Report != nil {
			resolved = fmt.Sprintf("%d", d.Report.Resolved)
			review = fmt.Sprintf("%d", d.Report.NeedsReview)
		}

		name := d.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(d.ID),
			name,
			d.SchemaName,
			d.Status,
			resolved,
			review,
			d.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

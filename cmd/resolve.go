package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/intake"
	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/resolve"
	"github.com/docufill/fieldcalc/internal/schema"
	"github.com/docufill/fieldcalc/internal/session"
)

var (
	resolveValuesFile string
	resolveTextFile   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve calculated fields without persisting",
	Long:  "One-shot resolution: load a schema, seed field values from a JSON file and/or a text document, run auto-fill, and print the result. Nothing is stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sc, err := schema.Load(schemaPath())
		if err != nil {
			return err
		}

		policy, err := resolvePolicy()
		if err != nil {
			return err
		}

		eng := resolve.New(policy)
		sess := session.New("adhoc", sc, eng)

		if resolveTextFile != "" {
			text, err := intake.ReadTextFile(resolveTextFile, "")
			if err != nil {
				return err
			}
			res := intake.NewMapper(sc.Registry()).MapText(text)
			intake.ApplyValues(sess.Store, res.Values, model.SourceExtracted)
			if len(res.Unmatched) > 0 {
				zap.L().Warn("unmatched numeric lines", zap.Strings("lines", res.Unmatched))
			}
		}

		if resolveValuesFile != "" {
			data, err := os.ReadFile(resolveValuesFile)
			if err != nil {
				return eris.Wrap(err, "read values file")
			}
			var values map[string]float64
			if err := json.Unmarshal(data, &values); err != nil {
				return eris.Wrap(err, "parse values file")
			}
			for key, v := range values {
				sess.Store.SetValue(key, v, model.SourceImported)
			}
		}

		if sess.Store.Len() == 0 {
			return eris.New("no input values: provide --values and/or --text")
		}

		report, err := sess.AutoFill(ctx)
		if err != nil {
			return eris.Wrap(err, "auto-fill")
		}

		zap.L().Info("resolution complete",
			zap.Int("resolved", report.Resolved),
			zap.Int("needs_review", report.NeedsReview),
			zap.Int("unresolvable", report.Unresolvable),
			zap.Int("passes", report.Passes),
		)

		out := struct {
			Values map[string]model.FieldValue `json:"values"`
			Report *model.FillReport           `json:"report"`
			Review []model.ReviewItem          `json:"review,omitempty"`
		}{
			Values: sess.Store.Snapshot(),
			Report: report,
			Review: sess.ReviewItems(),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveValuesFile, "values", "", "JSON file of field values (map of key to number)")
	resolveCmd.Flags().StringVar(&resolveTextFile, "text", "", "text file to extract values from")
	rootCmd.AddCommand(resolveCmd)
}

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
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/registry"
	"github.com/docufill/fieldcalc/internal/schema"
	"github.com/docufill/fieldcalc/pkg/notion"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Validate, inspect, and sync form schemas",
}

// -- schema validate --

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a schema file for problems",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := schemaPath()
		if len(args) == 1 {
			path = args[0]
		}

		sc, err := schema.Load(path)
		if err != nil {
			return err
		}

		warnings, err := schema.Validate(sc)
		for _, msg := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d fields, %d groups, ok\n", path, len(sc.Fields), len(sc.Groups))
		return nil
	},
}

// -- schema show --

var schemaShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print a schema's fields and calculation groups",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := schemaPath()
		if len(args) == 1 {
			path = args[0]
		}

		sc, err := schema.Load(path)
		if err != nil {
			return err
		}

		formatSchema(os.Stdout, sc)
		return nil
	},
}

// -- schema sync --

var (
	syncName string
	syncOut  string
)

var schemaSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull field and group definitions from Notion into a schema file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		client := notion.NewClient(cfg.Notion.Token)
		sc, err := registry.Sync(ctx, client, syncName, cfg.Notion.FieldDB, cfg.Notion.GroupDB)
		if err != nil {
			return eris.Wrap(err, "schema sync")
		}

		out := syncOut
		if out == "" {
			out = cfg.Schema.Path
		}

		data, err := json.MarshalIndent(sc, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal schema")
		}
		data = append(data, '\n')
		if err := os.WriteFile(out, data, 0644); err != nil {
			return eris.Wrap(err, "write schema file")
		}

		zap.L().Info("schema synced",
			zap.String("path", out),
			zap.Int("fields", len(sc.Fields)),
			zap.Int("groups", len(sc.Groups)),
		)
		return nil
	},
}

func init() {
	schemaSyncCmd.Flags().StringVar(&syncName, "name", "synced", "schema name to record in the file")
	schemaSyncCmd.Flags().StringVar(&syncOut, "out", "", "output path (default: configured schema path)")

	schemaCmd.AddCommand(schemaValidateCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaSyncCmd)
	rootCmd.AddCommand(schemaCmd)
}

// formatSchema writes the fields and groups of a schema as tables.
func formatSchema(out io.Writer, sc *schema.Schema) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Schema: %s\n\n", sc.Name)

	_, _ = fmt.Fprintln(w, "KEY\tLABEL\tKEYWORDS\tREQUIRED")
	_, _ = fmt.Fprintln(w, "---\t-----\t--------\t--------")
	for _, f := range sc.Fields {
		required := ""
		if f.Required {
			required = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.Key,
			f.Label,
			strings.Join(f.Keywords, ", "),
			required,
		)
	}

	if len(sc.Groups) > 0 {
		_, _ = fmt.Fprintln(w, "")
		_, _ = fmt.Fprintln(w, "GROUP\tPRIORITY\tFORMULA\tDEPENDS ON")
		_, _ = fmt.Fprintln(w, "-----\t--------\t-------\t----------")
		for _, g := range sc.Groups {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				g.ID,
				g.Priority,
				g.Formula,
				strings.Join(g.DependentFields, ", "),
			)
		}
	}

	_ = w.Flush()
}

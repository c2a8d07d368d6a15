package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/fieldcalc/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"resolve", "intake", "serve", "docs", "review", "schema"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fieldcalc", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_SchemaFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("schema")
	require.NotNil(t, flag, "root command should have --schema flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestIntakeCommand_Flags(t *testing.T) {
	flag := intakeCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag, "intake command should have --concurrency flag")
	assert.Equal(t, "4", flag.DefValue)

	nameFlag := intakeCmd.Flags().Lookup("name")
	require.NotNil(t, nameFlag, "intake command should have --name flag")
}

func TestResolveCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"values", "text"} {
		flag := resolveCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "resolve should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDocsCommand_HasSubcommands(t *testing.T) {
	cmds := docsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "docs should have subcommand %q", name)
	}
}

func TestDocsListCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"status", "schema-name", "limit", "offset"} {
		flag := docsListCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "docs list should have --%s flag", flagName)
	}
}

func TestReviewCommand_HasSubcommands(t *testing.T) {
	cmds := reviewCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "resolve"} {
		assert.True(t, names[name], "review should have subcommand %q", name)
	}
}

func TestReviewResolveCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"accept", "reject", "value", "note"} {
		flag := reviewResolveCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "review resolve should have --%s flag", flagName)
	}
}

func TestSchemaCommand_HasSubcommands(t *testing.T) {
	cmds := schemaCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"validate", "show", "sync"} {
		assert.True(t, names[name], "schema should have subcommand %q", name)
	}
}

func TestSchemaSyncCommand_Flags(t *testing.T) {
	flag := schemaSyncCmd.Flags().Lookup("name")
	require.NotNil(t, flag, "schema sync should have --name flag")
	assert.Equal(t, "synced", flag.DefValue)

	outFlag := schemaSyncCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag, "schema sync should have --out flag")
}

func TestSchemaPath_FlagOverridesConfig(t *testing.T) {
	origFile, origCfg := schemaFile, cfg
	t.Cleanup(func() { schemaFile, cfg = origFile, origCfg })

	cfg = &config.Config{}
	cfg.Schema.Path = "from-config.json"

	schemaFile = ""
	assert.Equal(t, "from-config.json", schemaPath())

	schemaFile = "from-flag.json"
	assert.Equal(t, "from-flag.json", schemaPath())
}

package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docufill/fieldcalc/internal/assist"
	"github.com/docufill/fieldcalc/internal/intake"
	"github.com/docufill/fieldcalc/internal/pipeline"
	"github.com/docufill/fieldcalc/internal/resolve"
	"github.com/docufill/fieldcalc/internal/schema"
	"github.com/docufill/fieldcalc/internal/store"
	anthropicpkg "github.com/docufill/fieldcalc/pkg/anthropic"
)

// schemaFile overrides the configured schema path when the --schema flag
// is set. Registered as a persistent flag so every command honors it.
var schemaFile string

// pipelineEnv holds the initialized store, schema, and pipeline needed by
// the intake and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Schema   *schema.Schema
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "fieldcalc.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func schemaPath() string {
	if schemaFile != "" {
		return schemaFile
	}
	return cfg.Schema.Path
}

// resolvePolicy returns the engine policy: the dedicated policy file when
// one is configured, otherwise the inline resolve config section.
func resolvePolicy() (resolve.Policy, error) {
	if cfg.Resolve.PolicyFile == "" {
		return cfg.Resolve.Policy(), nil
	}
	return resolve.LoadPolicy(cfg.Resolve.PolicyFile)
}

// intakeOptions maps the intake config section onto fetcher options.
func intakeOptions() intake.Options {
	timeout := time.Duration(cfg.Intake.TimeoutSecs) * time.Second
	return intake.Options{
		PDFBin: cfg.Intake.PdfToTextPath,
		HTTP: intake.HTTPOptions{
			UserAgent:  cfg.Intake.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Intake.MaxRetries,
			HostRate:   rate.Limit(cfg.Intake.HostRate),
		},
		FTP: intake.FTPOptions{
			Timeout: timeout,
		},
	}
}

// initPipeline sets up the store, loads the schema, and builds the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("fill"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sc, err := schema.Load(schemaPath())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("schema loaded",
		zap.String("name", sc.Name),
		zap.Int("fields", len(sc.Fields)),
		zap.Int("groups", len(sc.Groups)),
	)

	// Review assist is optional. Without a key the pipeline runs the same
	// workflow, just with no drafted notes or match suggestions.
	var as *assist.Assist
	if cfg.Anthropic.Key != "" {
		as = assist.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens))
		zap.L().Info("review assist enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		zap.L().Debug("FIELDCALC_ANTHROPIC_KEY not set, review assist disabled")
	}

	policy, err := resolvePolicy()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	eng := resolve.New(policy)
	in := intake.New(sc.Registry(), intakeOptions())
	p := pipeline.New(sc, eng, in, st, as)

	return &pipelineEnv{
		Store:    st,
		Schema:   sc,
		Pipeline: p,
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "schema file path (default from config)")
}

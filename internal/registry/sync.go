package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/schema"
	"github.com/docufill/fieldcalc/pkg/notion"
)

// Sync pulls active field definitions and calculation groups from the Notion
// registry and assembles them into a schema ready for use or export.
func Sync(ctx context.Context, client notion.Client, name, fieldDB, groupDB string) (*schema.Schema, error) {
	fields, err := LoadFieldDefs(ctx, client, fieldDB)
	if err != nil {
		return nil, err
	}

	groups, err := LoadCalculationGroups(ctx, client, groupDB)
	if err != nil {
		return nil, err
	}

	s, err := schema.New(name, fields, groups)
	if err != nil {
		return nil, eris.Wrap(err, "registry: assemble schema")
	}

	zap.L().Info("registry: schema synced",
		zap.String("schema", name),
		zap.Int("fields", len(fields)),
		zap.Int("groups", len(groups)),
	)
	return s, nil
}

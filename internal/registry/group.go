package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/pkg/notion"
)

// LoadCalculationGroups queries the Notion group database for all active
// calculation groups.
func LoadCalculationGroups(ctx context.Context, client notion.Client, dbID string) ([]model.CalculationGroup, error) {
	pages, err := notion.QueryActiveDefinitions(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load calculation groups")
	}

	var groups []model.CalculationGroup
	for _, p := range pages {
		g, err := parseGroupPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed group page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		groups = append(groups, g)
	}

	return groups, nil
}

func parseGroupPage(p notionapi.Page) (model.CalculationGroup, error) {
	var g model.CalculationGroup

	// ID (title)
	if prop, ok := p.Properties["ID"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			g.ID = plainText(tp.Title)
		}
	}

	// Formula (rich_text)
	if prop, ok := p.Properties["Formula"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			g.Formula = plainText(rtp.RichText)
		}
	}

	// Fields (multi_select): the declared dependent fields of the formula.
	if prop, ok := p.Properties["Fields"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				g.DependentFields = append(g.DependentFields, opt.Name)
			}
		}
	}

	// Priority (number)
	if prop, ok := p.Properties["Priority"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			g.Priority = int(np.Number)
		}
	}

	if g.ID == "" {
		return g, eris.New("missing ID property")
	}
	if g.Formula == "" {
		return g, eris.New("missing Formula property")
	}

	return g, nil
}

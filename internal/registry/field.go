// Package registry syncs field definitions and calculation groups from the
// shared Notion registry, where analysts maintain them, into a local schema.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/pkg/notion"
)

// LoadFieldDefs queries the Notion field database for all active field
// definitions.
func LoadFieldDefs(ctx context.Context, client notion.Client, dbID string) ([]model.FieldDef, error) {
	pages, err := notion.QueryActiveDefinitions(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load field defs")
	}

	var fields []model.FieldDef
	for _, p := range pages {
		f, err := parseFieldPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed field page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		fields = append(fields, f)
	}

	return fields, nil
}

func parseFieldPage(p notionapi.Page) (model.FieldDef, error) {
	var f model.FieldDef

	// Key (title)
	if prop, ok := p.Properties["Key"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			f.Key = plainText(tp.Title)
		}
	}

	// Label (rich_text)
	if prop, ok := p.Properties["Label"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			f.Label = plainText(rtp.RichText)
		}
	}

	// Keywords (multi_select)
	if prop, ok := p.Properties["Keywords"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				f.Keywords = append(f.Keywords, opt.Name)
			}
		}
	}

	// Required (checkbox)
	if prop, ok := p.Properties["Required"]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			f.Required = cp.Checkbox
		}
	}

	if f.Key == "" {
		return f, eris.New("missing Key property")
	}

	return f, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}

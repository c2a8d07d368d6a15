package registry

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLoadCalculationGroups_Success(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "g-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeGroupPage("g1", "total_from_parts", "total = subtotal + tax", []string{"subtotal", "tax"}, 1),
				makeGroupPage("g2", "tax_from_rate", "tax = subtotal * tax_rate", []string{"subtotal", "tax_rate"}, 2),
			},
			HasMore: false,
		}, nil).Once()

	groups, err := LoadCalculationGroups(ctx, mc, "g-db")
	assert.NoError(t, err)
	assert.Len(t, groups, 2)

	assert.Equal(t, "total_from_parts", groups[0].ID)
	assert.Equal(t, "total = subtotal + tax", groups[0].Formula)
	assert.Equal(t, []string{"subtotal", "tax"}, groups[0].DependentFields)
	assert.Equal(t, 1, groups[0].Priority)

	assert.Equal(t, "tax_from_rate", groups[1].ID)
	assert.Equal(t, 2, groups[1].Priority)

	mc.AssertExpectations(t)
}

func TestLoadCalculationGroups_MissingID(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "g-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeGroupPage("g1", "", "total = subtotal + tax", nil, 1),
				makeGroupPage("g2", "valid_group", "tax = total - subtotal", nil, 1),
			},
			HasMore: false,
		}, nil).Once()

	groups, err := LoadCalculationGroups(ctx, mc, "g-db")
	assert.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, "valid_group", groups[0].ID)
	mc.AssertExpectations(t)
}

func TestLoadCalculationGroups_MissingFormula(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "g-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeGroupPage("g1", "no_formula", "", nil, 1),
			},
			HasMore: false,
		}, nil).Once()

	groups, err := LoadCalculationGroups(ctx, mc, "g-db")
	assert.NoError(t, err)
	assert.Empty(t, groups)
	mc.AssertExpectations(t)
}

func TestLoadCalculationGroups_QueryError(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "g-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	groups, err := LoadCalculationGroups(ctx, mc, "g-db")
	assert.Error(t, err)
	assert.Nil(t, groups)
	mc.AssertExpectations(t)
}

// makeGroupPage builds a fake notionapi.Page with group database properties.
func makeGroupPage(pageID, groupID, formula string, fields []string, priority int) notionapi.Page {
	props := make(notionapi.Properties)

	props["ID"] = &notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{PlainText: groupID},
		},
	}

	props["Formula"] = &notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{PlainText: formula},
		},
	}

	var opts []notionapi.Option
	for _, f := range fields {
		opts = append(opts, notionapi.Option{Name: f})
	}
	props["Fields"] = &notionapi.MultiSelectProperty{
		Type:        notionapi.PropertyTypeMultiSelect,
		MultiSelect: opts,
	}

	props["Priority"] = &notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: float64(priority),
	}

	props["Status"] = &notionapi.StatusProperty{
		Type:   notionapi.PropertyTypeStatus,
		Status: notionapi.Status{Name: "Active"},
	}

	return notionapi.Page{
		ID:         notionapi.ObjectID(pageID),
		Properties: props,
	}
}

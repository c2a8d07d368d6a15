package registry

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLoadFieldDefs_Success(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "f-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeFieldPage("f1", "subtotal", "Subtotal", []string{"subtotal", "sub total"}, true),
				makeFieldPage("f2", "tax", "Sales Tax", []string{"tax", "vat"}, false),
			},
			HasMore: false,
		}, nil).Once()

	fields, err := LoadFieldDefs(ctx, mc, "f-db")
	assert.NoError(t, err)
	assert.Len(t, fields, 2)

	assert.Equal(t, "subtotal", fields[0].Key)
	assert.Equal(t, "Subtotal", fields[0].Label)
	assert.Equal(t, []string{"subtotal", "sub total"}, fields[0].Keywords)
	assert.True(t, fields[0].Required)

	assert.Equal(t, "tax", fields[1].Key)
	assert.False(t, fields[1].Required)

	mc.AssertExpectations(t)
}

func TestLoadFieldDefs_FiltersActive(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "f-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == "Active"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{},
		HasMore: false,
	}, nil).Once()

	fields, err := LoadFieldDefs(ctx, mc, "f-db")
	assert.NoError(t, err)
	assert.Empty(t, fields)
	mc.AssertExpectations(t)
}

func TestLoadFieldDefs_Pagination(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "f-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{makeFieldPage("f1", "subtotal", "", nil, false)},
		HasMore:    true,
		NextCursor: "cursor-next",
	}, nil).Once()

	mc.On("QueryDatabase", ctx, "f-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == "cursor-next"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{makeFieldPage("f2", "total", "", nil, false)},
		HasMore: false,
	}, nil).Once()

	fields, err := LoadFieldDefs(ctx, mc, "f-db")
	assert.NoError(t, err)
	assert.Len(t, fields, 2)
	assert.Equal(t, "subtotal", fields[0].Key)
	assert.Equal(t, "total", fields[1].Key)
	mc.AssertExpectations(t)
}

func TestLoadFieldDefs_MalformedPageSkipped(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "f-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeFieldPage("f1", "valid_key", "", nil, false),
				makeFieldPage("f2", "", "No Key", nil, false), // empty Key
			},
			HasMore: false,
		}, nil).Once()

	fields, err := LoadFieldDefs(ctx, mc, "f-db")
	assert.NoError(t, err)
	assert.Len(t, fields, 1)
	assert.Equal(t, "valid_key", fields[0].Key)
	mc.AssertExpectations(t)
}

func TestLoadFieldDefs_QueryError(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "f-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	fields, err := LoadFieldDefs(ctx, mc, "f-db")
	assert.Error(t, err)
	assert.Nil(t, fields)
	mc.AssertExpectations(t)
}

// makeFieldPage builds a fake notionapi.Page with field database properties.
func makeFieldPage(id, key, label string, keywords []string, required bool) notionapi.Page {
	props := make(notionapi.Properties)

	props["Key"] = &notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{PlainText: key},
		},
	}

	props["Label"] = &notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{PlainText: label},
		},
	}

	var opts []notionapi.Option
	for _, kw := range keywords {
		opts = append(opts, notionapi.Option{Name: kw})
	}
	props["Keywords"] = &notionapi.MultiSelectProperty{
		Type:        notionapi.PropertyTypeMultiSelect,
		MultiSelect: opts,
	}

	props["Required"] = &notionapi.CheckboxProperty{
		Type:     notionapi.PropertyTypeCheckbox,
		Checkbox: required,
	}

	props["Status"] = &notionapi.StatusProperty{
		Type:   notionapi.PropertyTypeStatus,
		Status: notionapi.Status{Name: "Active"},
	}

	return notionapi.Page{
		ID:         notionapi.ObjectID(id),
		Properties: props,
	}
}

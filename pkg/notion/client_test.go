package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestQueryDatabase(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	expected := &notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "page-1"}},
		HasMore: false,
	}

	mc.On("QueryDatabase", ctx, "db-123", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(expected, nil)

	resp, err := mc.QueryDatabase(ctx, "db-123", &notionapi.DatabaseQueryRequest{})
	assert.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, notionapi.ObjectID("page-1"), resp.Results[0].ID)
	mc.AssertExpectations(t)
}

func TestQueryDatabaseError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-err", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError)

	resp, err := mc.QueryDatabase(ctx, "db-err", &notionapi.DatabaseQueryRequest{})
	assert.Error(t, err)
	assert.Nil(t, resp)
	mc.AssertExpectations(t)
}

func TestNewClientReturnsClient(t *testing.T) {
	c := NewClient("test-token")
	assert.NotNil(t, c)
	var _ Client = c //nolint:staticcheck // interface compliance check
}

func TestWithRateLimit_Disable(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(0))
	nc, ok := c.(*notionClient)
	assert.True(t, ok)
	assert.Nil(t, nc.limiter)

	// wait() must be a no-op without a limiter.
	assert.NoError(t, nc.wait(context.Background()))
}

func TestWithRateLimit_Custom(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(10))
	nc, ok := c.(*notionClient)
	assert.True(t, ok)
	assert.NotNil(t, nc.limiter)
	assert.InDelta(t, 10.0, float64(nc.limiter.Limit()), 0.001)
}

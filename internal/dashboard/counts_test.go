package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) TripCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAPI) ItemRequestCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAPI) PendingMatchCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestLoad_Success(t *testing.T) {
	api := new(mockAPI)
	api.On("TripCount", mock.Anything).Return(3, nil)
	api.On("ItemRequestCount", mock.Anything).Return(5, nil)
	api.On("PendingMatchCount", mock.Anything).Return(2, nil)

	got, err := Load(context.Background(), api)

	require.NoError(t, err)
	assert.Equal(t, Counts{Trips: 3, Requests: 5, PendingMatches: 2}, got)
	api.AssertExpectations(t)
}

func TestLoad_AnyFailureFailsAll(t *testing.T) {
	api := new(mockAPI)
	api.On("TripCount", mock.Anything).Return(3, nil)
	api.On("ItemRequestCount", mock.Anything).Return(0, errors.New("boom"))
	api.On("PendingMatchCount", mock.Anything).Return(2, nil).Maybe()

	got, err := Load(context.Background(), api)

	require.Error(t, err)
	assert.Equal(t, Counts{}, got)
}

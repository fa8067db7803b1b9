package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/storage"
)

// MockHistoryRepository is a mock of storage.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

// SaveCompletion provides a mock function with given fields: ctx, r.
func (m *MockHistoryRepository) SaveCompletion(ctx context.Context, r model.CompletionRecord) error {
	ret := m.Called(ctx, r)
	return ret.Error(0)
}

// GetCompletion provides a mock function with given fields: ctx, id.
func (m *MockHistoryRepository) GetCompletion(ctx context.Context, id string) (*model.CompletionRecord, error) {
	ret := m.Called(ctx, id)

	var r0 *model.CompletionRecord
	if v := ret.Get(0); v != nil {
		r0 = v.(*model.CompletionRecord)
	}
	return r0, ret.Error(1)
}

// ListCompletions provides a mock function with given fields: ctx, opts.
func (m *MockHistoryRepository) ListCompletions(ctx context.Context, opts storage.ListOpts) ([]model.CompletionRecord, error) {
	ret := m.Called(ctx, opts)

	var r0 []model.CompletionRecord
	if v := ret.Get(0); v != nil {
		r0 = v.([]model.CompletionRecord)
	}
	return r0, ret.Error(1)
}

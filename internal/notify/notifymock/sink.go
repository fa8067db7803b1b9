package notifymock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/tasknotify/internal/model"
)

// MockSink is a mock of notify.Sink.
type MockSink struct {
	mock.Mock
}

// Notify provides a mock function with given fields: ctx, n.
func (m *MockSink) Notify(ctx context.Context, n model.Notification) error {
	ret := m.Called(ctx, n)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.Notification) error); ok {
		r0 = rf(ctx, n)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

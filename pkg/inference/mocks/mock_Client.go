// Package mocks provides test doubles for the inference client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	inference "github.com/hireloop/talent-cli/pkg/inference"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// NewMockClient creates a new MockClient and registers cleanup assertions.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// CreateMessage provides a mock function with given fields: ctx, req
func (_m *MockClient) CreateMessage(ctx context.Context, req inference.MessageRequest) (*inference.MessageResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for CreateMessage")
	}

	var r0 *inference.MessageResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, inference.MessageRequest) (*inference.MessageResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, inference.MessageRequest) *inference.MessageResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*inference.MessageResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, inference.MessageRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

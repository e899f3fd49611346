// Package mock provides a testify mock of api.Client
//
// Usage in tests:
//
//	client := mock.NewClient(t)
//	client.On("CreateSession", ctx, req).Return(&api.CreateSessionResponse{SessionID: "s-1"}, nil)
package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/turbo360/crewupload/internal/api"
)

// Client is a mock implementation of api.Client
type Client struct {
	mock.Mock
}

var _ api.Client = (*Client)(nil)

// NewClient creates a mock client whose expectations are asserted on cleanup
func NewClient(t testing.TB) *Client {
	c := &Client{}
	c.Test(t)
	t.Cleanup(func() { c.AssertExpectations(t) })
	return c
}

func (c *Client) Login(ctx context.Context, password string) (string, error) {
	args := c.Called(ctx, password)
	return args.String(0), args.Error(1)
}

func (c *Client) Logout(ctx context.Context) error {
	args := c.Called(ctx)
	return args.Error(0)
}

func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.CreateSessionResponse, error) {
	args := c.Called(ctx, req)
	resp, _ := args.Get(0).(*api.CreateSessionResponse)
	return resp, args.Error(1)
}

package api

import "context"

type Client interface {
	Login(ctx context.Context, password string) (string, error)
	Logout(ctx context.Context) error
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
}

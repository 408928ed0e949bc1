package api

import (
	"context"
	"net/http"

	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/session"
)

type Auth struct {
	doer Doer
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user,omitempty"`
}

func (a *Auth) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPost, Path: "auth/login/", Body: req}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

func (a *Auth) Me(ctx context.Context) (*models.User, error) {
	var user models.User

	err := a.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: "auth/me/"}, &user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// RefreshTokens implements session.Refresher.
func (a *Auth) RefreshTokens(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	var resp LoginResponse

	err := a.doer.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "auth/token/refresh/",
		Body:   map[string]string{"refresh": refreshToken},
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &session.Tokens{Access: resp.Access, Refresh: resp.Refresh}, nil
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatline/internal/config"
	"chatline/internal/database"
	"chatline/internal/models"
)

func newTestService() *Service {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: time.Hour,
		},
	}
	return NewService(database.NewMemoryDB(), cfg)
}

func register(t *testing.T, s *Service) *models.LoginResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), &models.RegisterRequest{
		UserName: "ana",
		Email:    "ana@example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService()
	reg := register(t, s)

	if reg.Token == "" {
		t.Error("registration must issue a token")
	}
	if reg.User.PasswordHash != "" {
		t.Error("password hash leaked in response")
	}
	if !reg.Expiration.After(time.Now()) {
		t.Errorf("expiration %v not in the future", reg.Expiration)
	}

	resp, err := s.Login(context.Background(), &models.LoginRequest{Email: "ana@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.User.UserName != "ana" {
		t.Errorf("User.UserName = %q", resp.User.UserName)
	}

	// Token round trip
	user, err := s.GetUserFromToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("GetUserFromToken() error = %v", err)
	}
	if user.ID != resp.User.ID || user.UserName != "ana" {
		t.Errorf("token resolved to %+v", user)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	s := newTestService()
	register(t, s)

	_, err := s.Login(context.Background(), &models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}

	_, err = s.Login(context.Background(), &models.LoginRequest{Email: "nobody@example.com", Password: "longenough"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing fields", models.RegisterRequest{}},
		{"bad email", models.RegisterRequest{UserName: "ana", Email: "not-an-email", Password: "longenough"}},
		{"short password", models.RegisterRequest{UserName: "ana", Email: "a@b.com", Password: "short"}},
		{"short username", models.RegisterRequest{UserName: "ab", Email: "a@b.com", Password: "longenough"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Register(ctx, &tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	s := newTestService()
	if _, err := s.ValidateToken("not.a.jwt"); err == nil {
		t.Error("garbage token must be rejected")
	}
}

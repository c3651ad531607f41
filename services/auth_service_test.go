package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/chess-arena/models"
)

func TestRegisterLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(newFakeUserRepo(), []byte("test-secret"))

	user, token, err := auth.Register(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.EloRating != models.DefaultEloRating {
		t.Errorf("initial rating = %d, want %d", user.EloRating, models.DefaultEloRating)
	}
	if token == "" {
		t.Fatal("Register returned empty token")
	}

	username, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if username != "alice" {
		t.Errorf("token username = %q, want alice", username)
	}

	if _, _, err := auth.Login(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, err := auth.Login(ctx, "alice", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := auth.Login(ctx, "nobody", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(newFakeUserRepo("taken"), []byte("test-secret"))

	if _, _, err := auth.Register(ctx, "x", "long enough pw"); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("short username error = %v, want ErrInvalidUsername", err)
	}
	if _, _, err := auth.Register(ctx, "alice", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password error = %v, want ErrPasswordTooShort", err)
	}
	if _, _, err := auth.Register(ctx, "taken", "long enough pw"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username error = %v, want ErrUsernameTaken", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthService(newFakeUserRepo(), []byte("test-secret"))
	other := NewAuthService(newFakeUserRepo(), []byte("different-secret"))

	if _, err := auth.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("garbage token error = %v, want ErrInvalidCredentials", err)
	}

	_, token, err := other.Register(context.Background(), "mallory", "long enough pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.ParseToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("cross-secret token error = %v, want ErrInvalidCredentials", err)
	}
}

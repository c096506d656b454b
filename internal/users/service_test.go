package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/auth"
	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "bakehouse-test", ExpirationMinutes: 5}

// Cheap parameters keep argon2 fast in tests.
var testPassword = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

type memorySessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{tokens: map[string]string{}}
}

func (m *memorySessions) StoreRefreshToken(_ context.Context, userID, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
	return nil
}

func (m *memorySessions) GetRefreshToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID], nil
}

func (m *memorySessions) RevokeRefreshToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func newUserService(t *testing.T) (Service, *memorySessions, *gorm.DB) {
	t.Helper()

	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sessions := newMemorySessions()
	svc, err := NewService(NewRepository(gdb), sessions, testJWT, testPassword)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sessions, gdb
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "maria@example.com",
		Name:     "Maria",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in the clear")
	}

	pair, err := svc.Login(ctx, "maria@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := auth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("token user = %s, want %s", claims.UserID, user.ID)
	}

	// Email match is case-insensitive.
	if _, err := svc.Login(ctx, "MARIA@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("case-insensitive login: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _ := newUserService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "correct-horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, tc := range []struct{ email, password string }{
		{"a@example.com", "wrong-password"},
		{"nobody@example.com", "correct-horse"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("login(%s): expected unauthorized, got %v", tc.email, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newUserService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Name: "First", Password: "password-one"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Name: "Second", Password: "password-two"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	t.Parallel()

	svc, sessions, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "r@example.com", Name: "R", Password: "rotate-me-now"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := svc.Login(ctx, "r@example.com", "rotate-me-now")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := svc.Refresh(ctx, user.ID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is dead after rotation.
	_, err = svc.Refresh(ctx, user.ID, pair.RefreshToken)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// Logout revokes the session entirely.
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if token, _ := sessions.GetRefreshToken(ctx, user.ID.String()); token != "" {
		t.Fatalf("session survived logout: %q", token)
	}
}

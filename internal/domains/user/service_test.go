package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tobenna/aria/pkg/Logger"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *memUserRepo) Create(u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *memUserRepo) GetByEmail(email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUserRepo) EmailExists(email string) (bool, error) {
	_, err := m.GetByEmail(email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func newTestService() UserService {
	return NewUserService(newMemUserRepo(), Logger.BuildLogger(true), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Register(ctx, CreateUserRequest{
		DisplayName: "Ada",
		Email:       "ada@example.com",
		Password:    "hunter22hunter22",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Errorf("unexpected user: %+v", created)
	}

	_, tokens, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatal("expected an access token")
	}

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != created.ID.String() {
		t.Errorf("token claims wrong user: %s != %s", claims.UserID, created.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	req := CreateUserRequest{DisplayName: "Ada", Email: "ada@example.com", Password: "hunter22hunter22"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, CreateUserRequest{
		DisplayName: "Ada", Email: "ada@example.com", Password: "hunter22hunter22",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	svc := newTestService()
	if _, err := svc.ValidateToken(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/internal/repository"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	users          map[string]*models.User
	findByEmailErr error
	createErr      error
	updated        []string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.Email] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockAuthRepo) UpdateCredentials(ctx context.Context, id, passwordHash string, role models.UserRole) error {
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			u.Role = role
			m.updated = append(m.updated, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "reimbursement-portal",
	})
}

func TestAuthServiceSignupCreatesStudent(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Signup(context.Background(), models.SignupRequest{
		Name: " Asha ", Email: "Asha@CUMail.in", Password: "secret1", Phone: "9876543210", EID: "E123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, "asha@cumail.in", res.User.Email)
	assert.Equal(t, "Asha", res.User.FullName)

	stored := repo.users["asha@cumail.in"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestAuthServiceSignupDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "asha@cumail.in"})
	svc := newTestAuthService(repo)

	_, err := svc.Signup(context.Background(), models.SignupRequest{Name: "Asha", Email: "asha@cumail.in", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceSignupValidation(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Signup(context.Background(), models.SignupRequest{Name: "Asha", Email: "asha@cumail.in", Password: "123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Signup(context.Background(), models.SignupRequest{Name: "Asha", Email: "nope", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "u1", res.User.ID)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := newMockAuthRepo()
	repo.findByEmailErr = errors.New("db down")
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceAdminLoginRequiresAdminRole(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "s1", Email: "student@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleStudent},
		&models.User{ID: "a1", Email: "admin@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleAdmin},
	)
	svc := newTestAuthService(repo)

	_, err := svc.AdminLogin(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	res, err := svc.AdminLogin(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken(token + "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	issued := time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)
	svc.now = fixedClock(issued)
	token, _, err := svc.generateAccessToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	svc.now = fixedClock(issued.Add(2 * time.Hour))
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceCurrentUser(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", FullName: "User", Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	info, err := svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "User", info.FullName)

	_, err = svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "gone"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.CurrentUser(context.Background(), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceEnsureAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	created, err := svc.EnsureAdmin(context.Background(), "Admin@CU.in", "adminpass", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, created.Role)
	assert.Equal(t, "Administrator", created.FullName)
	assert.Empty(t, repo.updated)

	promoted, err := svc.EnsureAdmin(context.Background(), "admin@cu.in", "newpass1", "Ignored")
	require.NoError(t, err)
	assert.Equal(t, created.ID, promoted.ID)
	assert.Equal(t, []string{created.ID}, repo.updated)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["admin@cu.in"].PasswordHash), []byte("newpass1")))

	_, err = svc.EnsureAdmin(context.Background(), "admin@cu.in", "123", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

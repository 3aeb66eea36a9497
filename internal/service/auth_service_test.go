package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

func TestAuthServiceLoginIssuesValidatableToken(t *testing.T) {
	svc := newAuthFixture(t, &authRepoStub{user: activeUser(t)})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@campus.edu", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginRejectsWrongPassword(t *testing.T) {
	svc := newAuthFixture(t, &authRepoStub{user: activeUser(t)})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@campus.edu", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsUnknownEmail(t *testing.T) {
	svc := newAuthFixture(t, &authRepoStub{findErr: sql.ErrNoRows})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@campus.edu", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.Active = false
	svc := newAuthFixture(t, &authRepoStub{user: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@campus.edu", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceCurrentUserRejectsDeletedAccount(t *testing.T) {
	svc := newAuthFixture(t, &authRepoStub{findErr: sql.ErrNoRows})

	_, err := svc.CurrentUser(context.Background(), "user-gone")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceCurrentUserRejectsDeactivatedAccount(t *testing.T) {
	user := activeUser(t)
	user.Active = false
	svc := newAuthFixture(t, &authRepoStub{user: user})

	_, err := svc.CurrentUser(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthFixture(t, &authRepoStub{user: activeUser(t)})
	other := NewAuthService(&authRepoStub{user: activeUser(t)}, nil, nil, AuthConfig{
		AccessTokenSecret: "a-different-secret",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "timetable-api",
	})

	resp, err := other.Login(context.Background(), models.LoginRequest{Email: "admin@campus.edu", Password: "s3cret"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

type authRepoStub struct {
	user    *models.User
	findErr error
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func newAuthFixture(t *testing.T, repo *authRepoStub) *AuthService {
	t.Helper()
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "timetable-api",
	})
}

func activeUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "admin@campus.edu",
		PasswordHash: string(hash),
		FullName:     "Ada Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

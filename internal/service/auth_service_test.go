package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type stubAuthRepo struct {
	userByEmail   *models.User
	userByID      *models.User
	createdUser   *models.User
	refreshTokens map[string]*models.RefreshToken
	revokedAll    bool
	auditActions  []models.AuditAction
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
}

func (s *stubAuthRepo) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	if s.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return s.userByEmail, nil
}

func (s *stubAuthRepo) FindByID(_ context.Context, _ string) (*models.User, error) {
	if s.userByID == nil {
		return nil, sql.ErrNoRows
	}
	return s.userByID, nil
}

func (s *stubAuthRepo) Create(_ context.Context, user *models.User) error {
	s.createdUser = user
	return nil
}

func (s *stubAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (s *stubAuthRepo) UpdatePassword(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(_ context.Context, _ string) error {
	s.revokedAll = true
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *stubAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.auditActions = append(s.auditActions, log.Action)
	return nil
}

func newAuthServiceForTest(repo *stubAuthRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "kelas-bersih-api",
	})
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "guru@sekolah.id",
		PasswordHash: string(hash),
		FullName:     "Bu Sari",
		Role:         models.RoleTeacher,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByEmail = activeUser(t, "rahasia123")
	svc := newAuthServiceForTest(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "guru@sekolah.id",
		Password: "rahasia123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByEmail = activeUser(t, "rahasia123")
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "guru@sekolah.id",
		Password: "salah",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newStubAuthRepo()
	user := activeUser(t, "rahasia123")
	user.Active = false
	repo.userByEmail = user
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "guru@sekolah.id",
		Password: "rahasia123",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthServiceForTest(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "siswa@sekolah.id",
		Password: "rahasia123",
		FullName: "Andi",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, models.RoleStudent, info.Role)
	require.NotNil(t, repo.createdUser)
	assert.NotEqual(t, "rahasia123", repo.createdUser.PasswordHash)
	assert.Contains(t, repo.auditActions, models.AuditActionRegister)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByEmail = activeUser(t, "rahasia123")
	svc := newAuthServiceForTest(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "guru@sekolah.id",
		Password: "rahasia123",
		FullName: "Bu Sari",
		Role:     models.RoleTeacher,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthServiceForTest(newStubAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "root@sekolah.id",
		Password: "rahasia123",
		FullName: "Root",
		Role:     models.RoleAdmin,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByEmail = activeUser(t, "rahasia123")
	repo.userByID = repo.userByEmail
	svc := newAuthServiceForTest(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "guru@sekolah.id",
		Password: "rahasia123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked; replaying it must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByID = activeUser(t, "rahasia123")
	svc := newAuthServiceForTest(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "rahasia123",
		NewPassword: "rahasiabaru1",
	})
	require.NoError(t, err)
	assert.True(t, repo.revokedAll)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := newStubAuthRepo()
	repo.userByID = activeUser(t, "rahasia123")
	svc := newAuthServiceForTest(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "salah",
		NewPassword: "rahasiabaru1",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

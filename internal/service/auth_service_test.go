package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-starter/internal/model"
	"go-auth-starter/internal/repository"
)

func newTestAuthService(t *testing.T) (*AuthService, *repository.MockUserStore) {
	t.Helper()

	store := repository.NewMockUserStore()
	tokens := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return NewAuthService(store, tokens, nil, bcrypt.MinCost), store
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	svc, store := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", resp.User.Email)
	require.Equal(t, model.RoleUser, resp.User.Role)
	require.True(t, resp.User.IsActive)
	require.NotEmpty(t, resp.Tokens.AccessToken)
	require.NotEmpty(t, resp.Tokens.RefreshToken)

	stored, ok := store.Stored(resp.User.ID)
	require.True(t, ok)
	require.NotEqual(t, "secret-password", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret-password")))
	require.NotNil(t, stored.RefreshTokenHash)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "A@X.COM", "other-password")
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "a@x.com", "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody@x.com", "secret-password")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(context.Background(), "a@x.com", "secret-password")
		require.NoError(t, err)
		require.NotEmpty(t, resp.Tokens.AccessToken)
		require.NotEmpty(t, resp.Tokens.RefreshToken)
	})
}

func TestLoginReplacesStoredRefreshHash(t *testing.T) {
	svc, store := newTestAuthService(t)

	first, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	beforeLogin, _ := store.Stored(first.User.ID)
	require.NotNil(t, beforeLogin.RefreshTokenHash)

	_, err = svc.Login(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	afterLogin, _ := store.Stored(first.User.ID)
	require.NotNil(t, afterLogin.RefreshTokenHash)
	require.NotEqual(t, *beforeLogin.RefreshTokenHash, *afterLogin.RefreshTokenHash)
}

func TestLoginInactiveUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), resp.User.ID, false))

	_, err = svc.Login(context.Background(), "a@x.com", "secret-password")
	require.ErrorIs(t, err, model.ErrUserInactive)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)
	userID := resp.User.ID
	oldRefresh := resp.Tokens.RefreshToken

	newPair, err := svc.Refresh(context.Background(), userID, oldRefresh)
	require.NoError(t, err)
	require.NotEqual(t, oldRefresh, newPair.RefreshToken)

	// The previous refresh token was invalidated by the rotation.
	_, err = svc.Refresh(context.Background(), userID, oldRefresh)
	require.ErrorIs(t, err, model.ErrTokenMismatch)

	// The new one works.
	_, err = svc.Refresh(context.Background(), userID, newPair.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshAfterLogout(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.User.ID))

	_, err = svc.Refresh(context.Background(), resp.User.ID, resp.Tokens.RefreshToken)
	require.ErrorIs(t, err, model.ErrNotLoggedIn)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.User.ID))
	require.NoError(t, svc.Logout(context.Background(), resp.User.ID))
	require.NoError(t, svc.Logout(context.Background(), "no-such-user"))
}

func TestValidateAccess(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	claims, err := svc.ValidateAccess(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, model.RoleUser, claims.Role)
}

func TestValidateAccessRejectsInactiveUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), resp.User.ID, false))

	_, err = svc.ValidateAccess(context.Background(), resp.Tokens.AccessToken)
	require.ErrorIs(t, err, model.ErrUserInactive)
}

func TestValidateAccessReflectsRoleChange(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	require.NoError(t, svc.ChangeRole(context.Background(), resp.User.ID, model.RoleModerator))

	claims, err := svc.ValidateAccess(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, model.RoleModerator, claims.Role)
}

func TestValidateRefreshRequiresStoredHash(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(context.Background(), resp.Tokens.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.User.ID))

	_, err = svc.ValidateRefresh(context.Background(), resp.Tokens.RefreshToken)
	require.ErrorIs(t, err, model.ErrNotLoggedIn)
}

func TestChangeRoleRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	err = svc.ChangeRole(context.Background(), resp.User.ID, "superuser")
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGetProfile(t *testing.T) {
	svc, _ := newTestAuthService(t)

	resp, err := svc.Register(context.Background(), "a@x.com", "secret-password")
	require.NoError(t, err)

	user, err := svc.GetProfile(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", user.Email)

	_, err = svc.GetProfile(context.Background(), "no-such-user")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

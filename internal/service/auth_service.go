package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-auth-starter/internal/cache"
	"go-auth-starter/internal/model"
)

// UserStore is the credential-store surface the auth flow depends on.
// *repository.UserRepository is the production implementation.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateRefreshTokenHash(ctx context.Context, userID string, hash string) error
	RotateRefreshTokenHash(ctx context.Context, userID string, prevHash string, newHash string) (bool, error)
	RemoveRefreshTokenHash(ctx context.Context, userID string) error
	UpdateRole(ctx context.Context, userID string, role string) error
	SetActive(ctx context.Context, userID string, active bool) error
	List(ctx context.Context) ([]model.PublicUser, error)
}

type AuthService struct {
	users      UserStore
	tokens     *TokenService
	userCache  *cache.Cache
	bcryptCost int
}

func NewAuthService(users UserStore, tokens *TokenService, userCache *cache.Cache, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		userCache:  userCache,
		bcryptCost: bcryptCost,
	}
}

// Register creates a user with role "user", hashes the password before
// storage and logs the new user in by issuing a token pair.
func (s *AuthService) Register(ctx context.Context, email string, password string) (model.AuthResponse, error) {
	email = normalizeEmail(email)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if exists {
		return model.AuthResponse{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.AuthResponse{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.AuthResponse{}, err
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{User: user.PublicView(), Tokens: pair}, nil
}

// Login verifies the credentials and issues a fresh token pair, replacing any
// previously stored refresh-token hash.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.AuthResponse, error) {
	user, err := s.users.FindByEmailWithPassword(ctx, normalizeEmail(email))
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResponse{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.AuthResponse{}, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		return model.AuthResponse{}, model.ErrUserInactive
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{User: user.PublicView(), Tokens: pair}, nil
}

// Logout clears the stored refresh-token hash. Calling it for an already
// logged-out user is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.RemoveRefreshTokenHash(ctx, userID); err != nil {
		return err
	}
	s.evict(ctx, userID)
	return nil
}

// Refresh rotates the refresh token: the presented token must hash to the
// stored value, and the stored value is swapped for the new token's hash in
// one conditional update. A concurrent refresh that rotated first leaves the
// presented token stale, which fails here instead of double-issuing.
func (s *AuthService) Refresh(ctx context.Context, userID string, presented string) (model.TokenPair, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrUnauthorized
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrUserInactive
	}
	if user.RefreshTokenHash == nil {
		return model.TokenPair{}, model.ErrNotLoggedIn
	}

	presentedHash := s.tokens.HashRefresh(presented)
	if *user.RefreshTokenHash != presentedHash {
		return model.TokenPair{}, model.ErrTokenMismatch
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	rotated, err := s.users.RotateRefreshTokenHash(ctx, userID, presentedHash, s.tokens.HashRefresh(pair.RefreshToken))
	if err != nil {
		return model.TokenPair{}, err
	}
	if !rotated {
		return model.TokenPair{}, model.ErrTokenMismatch
	}

	s.evict(ctx, userID)
	return pair, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.PublicView(), nil
}

// ValidateAccess backs the access-token guard: verify the signature, then
// load the user so deactivated or deleted accounts are rejected even while
// their tokens are still unexpired. Claims reflect the stored role, not the
// token's, so role changes take effect immediately.
func (s *AuthService) ValidateAccess(ctx context.Context, tokenString string) (*model.AuthClaims, error) {
	claims, err := s.tokens.ParseAccess(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, model.ErrUserInactive
	}

	claims.Email = user.Email
	claims.Role = user.Role
	return claims, nil
}

// ValidateRefresh backs the refresh-token guard. On top of the access checks
// it requires that a refresh-token hash is currently stored, i.e. the user
// has not logged out.
func (s *AuthService) ValidateRefresh(ctx context.Context, tokenString string) (*model.AuthClaims, error) {
	claims, err := s.tokens.ParseRefresh(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, model.ErrUserInactive
	}
	if user.RefreshTokenHash == nil {
		return nil, model.ErrNotLoggedIn
	}

	claims.Email = user.Email
	claims.Role = user.Role
	return claims, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	return s.users.List(ctx)
}

func (s *AuthService) ChangeRole(ctx context.Context, userID string, role string) error {
	if !model.ValidRole(role) {
		return model.ErrInvalidInput
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.evict(ctx, userID)
	return nil
}

// SetActive flips the active flag. Deactivation kills outstanding sessions:
// the store clears the refresh-token hash and the guard rejects the user on
// the next request.
func (s *AuthService) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.evict(ctx, userID)
	return nil
}

func (s *AuthService) issueAndStore(ctx context.Context, user model.User) (model.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.users.UpdateRefreshTokenHash(ctx, user.ID, s.tokens.HashRefresh(pair.RefreshToken)); err != nil {
		return model.TokenPair{}, err
	}

	s.evict(ctx, user.ID)
	return pair, nil
}

// loadUser goes through the optional cache. Cache failures degrade to a
// direct store read and never fail the request.
func (s *AuthService) loadUser(ctx context.Context, userID string) (model.User, error) {
	key := userCacheKey(userID)

	var cached model.User
	hit, err := s.userCache.Get(ctx, key, &cached)
	if err != nil {
		slog.Warn("user cache read failed", "user_id", userID, "error", err)
	}
	if hit {
		return cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if err := s.userCache.Set(ctx, key, user); err != nil {
		slog.Warn("user cache write failed", "user_id", userID, "error", err)
	}
	return user, nil
}

func (s *AuthService) evict(ctx context.Context, userID string) {
	if err := s.userCache.Invalidate(ctx, userCacheKey(userID)); err != nil {
		slog.Warn("user cache invalidation failed", "user_id", userID, "error", err)
	}
}

func userCacheKey(userID string) string {
	return "user:" + userID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

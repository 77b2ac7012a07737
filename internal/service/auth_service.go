package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/ecommerce-backend/internal/model"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/token"
	"github.com/iliyamo/ecommerce-backend/internal/utils"
)

// Domain errors raised by the auth flows.  ErrInvalidCredentials is shared
// by every login failure mode so responses never reveal whether the email,
// the password or the account type was wrong.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrOAuthOnlyAccount       = errors.New("account has no password")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrUserNotFound           = errors.New("user not found")
)

// UserStore is the slice of the user repository the auth service consumes.
type UserStore interface {
	Create(ctx context.Context, u model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByOAuth(ctx context.Context, provider, providerID string) (model.User, error)
	LinkOAuth(ctx context.Context, userID, provider, providerID string) error
	UpdatePassword(ctx context.Context, userID, hash string) error
	UpdateLastLogin(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, userID string, firstName, lastName, phone *string) error
	Delete(ctx context.Context, userID string) error
}

// TokenIssuer is the slice of the token issuer the auth service consumes.
type TokenIssuer interface {
	IssuePair(ctx context.Context, u model.User) (token.Pair, error)
	Rotate(ctx context.Context, raw string) (token.Pair, error)
	Revoke(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, userID string) error
	AccessTTLSeconds() int
}

// AuthResult is what a successful register, login or OAuth login returns:
// the public user view plus a fresh token pair and the access token's
// lifetime in seconds.
type AuthResult struct {
	User         model.PublicUser `json:"user"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int              `json:"expires_in"`
}

// RegisterInput is the validated payload for registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService composes the user store and token issuer into registration
// and session lifecycle operations.
type AuthService struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
}

func NewAuthService(users UserStore, tokens TokenIssuer, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// Register creates a customer account and logs it in.  A duplicate email
// surfaces as repository.ErrEmailExists for the boundary to map to 409.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email := normalizeEmail(in.Email)
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return AuthResult{}, err
	}
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         model.RoleCustomer,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return AuthResult{}, err
	}
	return s.issueResult(ctx, u)
}

// Login verifies credentials and issues a fresh pair.  Unknown email,
// OAuth-only account and wrong password all fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if err == repository.ErrNotFound {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(*u.PasswordHash, password) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		log.Printf("auth: update last login failed for %s: %v", u.ID, err)
	}
	return s.issueResult(ctx, u)
}

// OAuthLogin signs a user in through a trusted identity provider.  The
// lookup order is provider link first, then email (linking the provider to
// the existing account), then a brand new account.  Provider emails are
// treated as verified.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, providerID, email, firstName, lastName string) (AuthResult, error) {
	u, err := s.users.GetByOAuth(ctx, provider, providerID)
	if err == repository.ErrNotFound {
		u, err = s.users.GetByEmail(ctx, normalizeEmail(email))
		switch {
		case err == nil:
			if lerr := s.users.LinkOAuth(ctx, u.ID, provider, providerID); lerr != nil {
				return AuthResult{}, lerr
			}
			u.OAuthProvider = &provider
			u.OAuthProviderID = &providerID
		case err == repository.ErrNotFound:
			u = model.User{
				ID:              uuid.NewString(),
				Email:           normalizeEmail(email),
				FirstName:       firstName,
				LastName:        lastName,
				Role:            model.RoleCustomer,
				OAuthProvider:   &provider,
				OAuthProviderID: &providerID,
				IsEmailVerified: true,
			}
			if cerr := s.users.Create(ctx, u); cerr != nil {
				return AuthResult{}, cerr
			}
		default:
			return AuthResult{}, err
		}
	} else if err != nil {
		return AuthResult{}, err
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		log.Printf("auth: update last login failed for %s: %v", u.ID, err)
	}
	return s.issueResult(ctx, u)
}

// Refresh rotates a refresh token into a new pair.  Revoked and invalid
// tokens surface as the issuer's errors for the boundary to map to 401.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

// AccessTTLSeconds exposes the access token lifetime for response bodies.
func (s *AuthService) AccessTTLSeconds() int {
	return s.tokens.AccessTTLSeconds()
}

// Logout revokes the presented refresh token.  It succeeds even when the
// token is already invalid or revoked.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every refresh token of the user.  The revocation is a security
// invariant: a password change logs out every device.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return ErrUserNotFound
		}
		return err
	}
	if u.PasswordHash == nil {
		return ErrOAuthOnlyAccount
	}
	if !utils.VerifyPassword(*u.PasswordHash, currentPassword) {
		return ErrInvalidCurrentPassword
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, userID)
}

// GetProfile returns the public view of the user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (model.PublicUser, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return model.PublicUser{}, ErrUserNotFound
		}
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateProfile applies the provided profile fields and returns the fresh
// public view.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, firstName, lastName, phone *string) (model.PublicUser, error) {
	if err := s.users.UpdateProfile(ctx, userID, firstName, lastName, phone); err != nil {
		return model.PublicUser{}, err
	}
	return s.GetProfile(ctx, userID)
}

// DeleteAccount revokes every session, then removes the user row.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	return s.users.Delete(ctx, userID)
}

func (s *AuthService) issueResult(ctx context.Context, u model.User) (AuthResult, error) {
	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		User:         u.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    s.tokens.AccessTTLSeconds(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

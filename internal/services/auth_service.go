package services

import (
	"context"
	"errors"
	"strings"

	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
)

// AuthService handles login verification and permission checks.
// Provides a layer of abstraction between HTTP handlers and the account store,
// combining credential checks with the configured identity provider.
//
// Dependencies:
//   - UserStore: account lookup by email or name
//   - PasswordHasher: argon2id digest and verification
//   - Authorizer: role-based or allow-list permissions
//
// Security Notes:
//   - Unknown account, inactive account and wrong password all return
//     ErrInvalidCredentials so callers cannot tell them apart
//   - A digest is computed even when no account matches, keeping response
//     times similar
//
// Related:
//   - Login handler (handlers/auth.go)
//   - Directive creation (DirectiveService)
type AuthService struct {
	users  UserStore
	hasher *PasswordHasher
	authz  Authorizer
}

// NewAuthService creates and returns a new AuthService.
//
// Example:
//
//	authService := services.NewAuthService(repository.NewUserRepository(pool), hasher, services.RoleAuthorizer{})
//	user, err := authService.VerifyLogin(ctx, "dana@example.com", "password123")
func NewAuthService(users UserStore, hasher *PasswordHasher, authz Authorizer) *AuthService {
	return &AuthService{users: users, hasher: hasher, authz: authz}
}

// Lookup resolves an identifier to an account. An identifier containing "@"
// is an email; anything else is a case-insensitive display name.
//
// Returns:
//   - *models.User: The matching account
//   - error: repository.ErrNotFound, repository.ErrAmbiguousName, or a database error
func (s *AuthService) Lookup(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, repository.ErrNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.users.FindByEmail(ctx, identifier)
	}
	return s.users.FindByName(ctx, identifier)
}

// VerifyLogin checks an identifier and password and returns the account on success.
//
// This method:
//  1. Looks the account up by email (identifier contains "@") or by name
//  2. Rejects inactive accounts
//  3. Recomputes the digest with the stored salt and compares in constant time
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - identifier: Email or display name
//   - password: Plaintext password
//
// Returns:
//   - *models.User: Account on success
//   - error: ErrInvalidCredentials on any mismatch, or a database error
//
// Error Cases:
//   - No account, or a name shared by two active accounts: ErrInvalidCredentials
//   - Inactive account: ErrInvalidCredentials, even with the right password
//   - Database failure: wrapped database error
func (s *AuthService) VerifyLogin(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.Lookup(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrAmbiguousName) {
		s.hasher.Hash(password, "timing")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.Salt, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// IsAdmin reports whether user may use the admin pages.
func (s *AuthService) IsAdmin(user *models.User) bool {
	return s.authz.IsAdmin(user)
}

// CanCreateDirective reports whether user may create or complete directives.
func (s *AuthService) CanCreateDirective(user *models.User) bool {
	return s.authz.CanCreateDirective(user)
}

// CanCreateDirectiveAs re-checks permission for the creator identifier typed
// into the directive form, which may differ from the signed-in account.
//
// An identifier with no matching account is still checked as a bare
// identifier, so an allow-list entry works without an account row.
// Inactive accounts are never permitted.
func (s *AuthService) CanCreateDirectiveAs(ctx context.Context, identifier string) (bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false, nil
	}

	user, err := s.Lookup(ctx, identifier)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.authz.CanCreateDirective(&models.User{Name: identifier, Email: identifier}), nil
	case errors.Is(err, repository.ErrAmbiguousName):
		return false, nil
	case err != nil:
		return false, err
	}

	return user.IsActive && s.authz.CanCreateDirective(user), nil
}

// ChangePassword sets a new salt and digest for the account.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, password string) error {
	hash, salt, err := s.hasher.NewCredential(password)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, userID, hash, salt)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
	"bibliosys-backend/internal/security"
)

type authService struct {
	store  repository.Store
	tokens security.TokenManager
	clock  Clock
}

func NewAuthService(store repository.Store, tokens security.TokenManager, clock Clock) AuthService {
	return &authService{store: store, tokens: tokens, clock: clock}
}

func (s *authService) Login(ctx context.Context, username, password string) (string, *domain.Principal, error) {
	account, err := s.store.Accounts().GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !security.CheckPassword(account.PasswordHash, password) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !account.IsActive {
		return "", nil, domain.ErrAccountInactive
	}

	var readerID *int64
	reader, err := s.store.Readers().GetByAccountID(ctx, account.ID)
	switch {
	case err == nil:
		readerID = &reader.ID
	case !errors.Is(err, domain.ErrNotFound):
		return "", nil, err
	}

	principal := account.Principal(readerID)
	token, err := s.tokens.GenerateAccessToken(principal)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	logger.Info("Login succeeded", "account_id", account.ID, "role", account.Role)
	return token, &principal, nil
}

// EnsureLibrarian creates the bootstrap librarian account if it is missing.
func (s *authService) EnsureLibrarian(ctx context.Context, username, password string) error {
	_, err := s.store.Accounts().GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	account := &domain.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleLibrarian,
		IsActive:     true,
		CreatedAt:    s.clock.now(),
	}
	err = s.store.Accounts().Create(ctx, account)
	switch {
	case errors.Is(err, domain.ErrUniqueViolation):
		// another replica created it between the lookup and the insert
		logger.Info("Bootstrap librarian already present", "username", username)
		return nil
	case err != nil:
		return err
	}
	logger.Info("Bootstrap librarian created", "username", username)
	return nil
}

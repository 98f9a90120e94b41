package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
	"bibliosys-backend/internal/security"
)

type readerService struct {
	store       repository.Store
	clock       Clock
	maxAttempts int
	suffix      suffixFunc
}

func NewReaderService(store repository.Store, clock Clock, allocationAttempts int) ReaderService {
	return &readerService{
		store:       store,
		clock:       clock,
		maxAttempts: allocationAttempts,
		suffix:      randomHexSuffix,
	}
}

func (s *readerService) Register(ctx context.Context, p domain.Principal, in RegisterReaderInput) (*domain.Reader, *domain.Account, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, nil, err
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, nil, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = domain.ReaderStatusActive
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	usernameBase := strings.TrimSpace(in.Username)
	if usernameBase == "" {
		usernameBase = domain.UsernameBase(in.Email)
	}

	now := s.clock.now()
	var (
		reader  *domain.Reader
		account *domain.Account
	)
	err = s.store.WithinTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.Readers().GetByEmail(ctx, in.Email); err == nil {
			return fmt.Errorf("email %s: %w", in.Email, domain.ErrDuplicate)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		account = &domain.Account{PasswordHash: hash, Role: domain.RoleReader, CreatedAt: now}
		if _, err := allocateUnique(ctx, "username", usernameBase, s.maxAttempts, s.suffix, func(candidate string) error {
			account.Username = candidate
			return tx.Accounts().Create(ctx, account)
		}); err != nil {
			return err
		}

		reader = &domain.Reader{
			AccountID: account.ID,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Email:     in.Email,
			Status:    in.Status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := allocateUnique(ctx, "membership number", domain.MembershipNumberBase(now), s.maxAttempts, s.suffix, func(candidate string) error {
			reader.MembershipNumber = candidate
			return tx.Readers().Create(ctx, reader)
		}); err != nil {
			return err
		}

		return s.syncAccount(ctx, tx, reader, account)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Reader registered", "reader_id", reader.ID, "account_id", account.ID,
		"username", account.Username, "membership_number", reader.MembershipNumber)
	return reader, account, nil
}

// ChangeStatus updates the profile and then explicitly re-derives the
// account's active flag from it.
func (s *readerService) ChangeStatus(ctx context.Context, p domain.Principal, readerID int64, status domain.ReaderStatus) (*domain.Reader, error) {
	if err := p.RequireLibrarian(); err != nil {
		return nil, err
	}

	var reader *domain.Reader
	err := s.store.WithinTx(ctx, func(tx repository.Repos) error {
		var err error
		reader, err = tx.Readers().GetByID(ctx, readerID)
		if err != nil {
			return err
		}
		if err := tx.Readers().UpdateStatus(ctx, readerID, status); err != nil {
			return err
		}
		reader.Status = status

		account, err := tx.Accounts().GetByID(ctx, reader.AccountID)
		if err != nil {
			return fmt.Errorf("account of reader %d: %w", readerID, err)
		}
		return s.syncAccount(ctx, tx, reader, account)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Reader status changed", "reader_id", readerID, "status", status, "by", p.AccountID)
	return reader, nil
}

func (s *readerService) syncAccount(ctx context.Context, tx repository.Repos, reader *domain.Reader, account *domain.Account) error {
	active := reader.AccountShouldBeActive()
	if account.IsActive == active {
		return nil
	}
	if err := tx.Accounts().SetActive(ctx, account.ID, active); err != nil {
		return fmt.Errorf("sync account %d: %w", account.ID, err)
	}
	account.IsActive = active
	return nil
}

func (s *readerService) Get(ctx context.Context, p domain.Principal, readerID int64) (*domain.Reader, error) {
	if !p.IsLibrarian() && (p.ReaderID == nil || *p.ReaderID != readerID) {
		return nil, domain.ErrPermissionDenied
	}
	return s.store.Readers().GetByID(ctx, readerID)
}

package memory

import (
	"context"
	"strings"
	"time"

	"bibliosys-backend/internal/domain"
)

type accountRepository struct{ *repos }

func (r accountRepository) Create(_ context.Context, a *domain.Account) error {
	return r.run(func(st *state) error {
		for _, existing := range st.accounts {
			if existing.Username == a.Username {
				return domain.ErrUniqueViolation
			}
		}
		a.ID = st.id()
		st.accounts[a.ID] = *a
		return nil
	})
}

func (r accountRepository) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.ID == id })
}

func (r accountRepository) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Username == username })
}

func (r accountRepository) find(match func(domain.Account) bool) (*domain.Account, error) {
	var out *domain.Account
	err := r.run(func(st *state) error {
		for _, a := range st.accounts {
			if match(a) {
				found := a
				out = &found
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r accountRepository) SetActive(_ context.Context, id int64, active bool) error {
	return r.run(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return domain.ErrNotFound
		}
		a.IsActive = active
		st.accounts[id] = a
		return nil
	})
}

type readerRepository struct{ *repos }

func (r readerRepository) Create(_ context.Context, rd *domain.Reader) error {
	return r.run(func(st *state) error {
		for _, existing := range st.readers {
			if existing.MembershipNumber == rd.MembershipNumber {
				return domain.ErrUniqueViolation
			}
			if strings.EqualFold(existing.Email, rd.Email) || existing.AccountID == rd.AccountID {
				return domain.ErrDuplicate
			}
		}
		rd.ID = st.id()
		st.readers[rd.ID] = *rd
		return nil
	})
}

func (r readerRepository) GetByID(_ context.Context, id int64) (*domain.Reader, error) {
	return r.find(func(rd domain.Reader) bool { return rd.ID == id })
}

func (r readerRepository) GetByAccountID(_ context.Context, accountID int64) (*domain.Reader, error) {
	return r.find(func(rd domain.Reader) bool { return rd.AccountID == accountID })
}

func (r readerRepository) GetByEmail(_ context.Context, email string) (*domain.Reader, error) {
	return r.find(func(rd domain.Reader) bool { return strings.EqualFold(rd.Email, email) })
}

func (r readerRepository) find(match func(domain.Reader) bool) (*domain.Reader, error) {
	var out *domain.Reader
	err := r.run(func(st *state) error {
		for _, rd := range st.readers {
			if match(rd) {
				found := rd
				out = &found
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r readerRepository) UpdateStatus(_ context.Context, id int64, status domain.ReaderStatus) error {
	return r.run(func(st *state) error {
		rd, ok := st.readers[id]
		if !ok {
			return domain.ErrNotFound
		}
		rd.Status = status
		rd.UpdatedAt = time.Now()
		st.readers[id] = rd
		return nil
	})
}

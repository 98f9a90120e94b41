package domain

import (
	"fmt"
	"strings"
	"time"
)

type ReaderStatus string

const (
	ReaderStatusActive    ReaderStatus = "active"
	ReaderStatusInactive  ReaderStatus = "inactive"
	ReaderStatusSuspended ReaderStatus = "suspended"
)

func ParseReaderStatus(s string) (ReaderStatus, error) {
	switch st := ReaderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ReaderStatusActive, ReaderStatusInactive, ReaderStatusSuspended:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown reader status %q", ErrInvalidInput, s)
	}
}

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Reader struct {
	ID               int64        `json:"id"`
	AccountID        int64        `json:"account_id"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Email            string       `json:"email"`
	MembershipNumber string       `json:"membership_number"`
	Status           ReaderStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AccountShouldBeActive is the single rule tying login ability to the
// reader profile: only active readers may sign in.
func (r Reader) AccountShouldBeActive() bool {
	return r.Status == ReaderStatusActive
}

// Principal builds the caller identity for a reader's account.
func (a Account) Principal(readerID *int64) Principal {
	return Principal{AccountID: a.ID, Role: a.Role, ReaderID: readerID}
}

// MembershipNumberBase derives the first membership number candidate.
func MembershipNumberBase(now time.Time) string {
	return fmt.Sprintf("MEM%d", now.Unix())
}

// UsernameBase derives the first username candidate from an email address.
func UsernameBase(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	return local
}

package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoReaderProfile  = errors.New("principal has no reader profile")

	// Request workflow
	ErrDuplicate       = errors.New("a pending request already exists")
	ErrAlreadyDecided  = errors.New("request already decided")
	ErrInvalidDecision = errors.New("decision must be APPROVE or REJECT")
	ErrNotOwner        = errors.New("loan belongs to another reader")
	ErrLoanNotActive   = errors.New("loan is not active")

	// Inventory and loans
	ErrExhausted     = errors.New("no copies available")
	ErrOverReturn    = errors.New("release would exceed total copies")
	ErrAlreadyClosed = errors.New("loan already closed")

	// Accounts and identifiers
	ErrUniqueViolation     = errors.New("unique value already taken")
	ErrAllocationExhausted = errors.New("could not allocate a unique identifier")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrAccountInactive     = errors.New("account is inactive")
)

// IsInvariantViolation reports whether err signals corrupted stock accounting
// rather than a caller mistake.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrOverReturn)
}

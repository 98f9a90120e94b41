package domain

type Role string

const (
	RoleReader    Role = "READER"
	RoleLibrarian Role = "LIBRARIAN"
)

func (r Role) Valid() bool {
	return r == RoleReader || r == RoleLibrarian
}

// Principal identifies the caller of a workflow operation. It is always
// passed explicitly; nothing reads a "current user" from ambient state.
type Principal struct {
	AccountID int64  `json:"account_id"`
	Role      Role   `json:"role"`
	ReaderID  *int64 `json:"reader_id,omitempty"`
}

func (p Principal) IsLibrarian() bool {
	return p.Role == RoleLibrarian
}

// RequireLibrarian fails with ErrPermissionDenied for any other role.
func (p Principal) RequireLibrarian() error {
	if !p.IsLibrarian() {
		return ErrPermissionDenied
	}
	return nil
}

// RequireReader returns the reader profile id the principal acts as.
func (p Principal) RequireReader() (int64, error) {
	if p.ReaderID == nil {
		return 0, ErrNoReaderProfile
	}
	return *p.ReaderID, nil
}

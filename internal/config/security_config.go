// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic    SecurityLevel = iota // No authentication
	SecurityAccess                         // Access token required
	SecurityLibrarian                      // Access token with the librarian role
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityPublic:
		return "public"
	case SecurityAccess:
		return "access"
	case SecurityLibrarian:
		return "librarian"
	}
	return "unknown"
}

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"Healthz":   SecurityPublic,
	"AuthLogin": SecurityPublic,

	// Catalogue
	"AddStock": SecurityLibrarian,

	// Borrowing
	"SubmitBorrow":              SecurityAccess,
	"ListPendingBorrowRequests": SecurityLibrarian,
	"DecideBorrow":              SecurityLibrarian,

	// Returning
	"SubmitReturn":              SecurityAccess,
	"ListPendingReturnRequests": SecurityLibrarian,
	"DecideReturn":              SecurityLibrarian,

	// Loans
	"ListLoans":     SecurityLibrarian,
	"ListMyLoans":   SecurityAccess,
	"GetLoan":       SecurityAccess,
	"LoanIsOverdue": SecurityAccess,
	"ListArchive":   SecurityLibrarian,

	// Readers
	"RegisterReader":     SecurityLibrarian,
	"ChangeReaderStatus": SecurityLibrarian,
	"GetReader":          SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityLibrarian
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
)

const defaultAllocationAttempts = 6

// suffixFunc yields the random part appended to a colliding candidate.
type suffixFunc func() string

func randomHexSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// allocateUnique tries base first, then base-<suffix>, until insert accepts a
// candidate or maxAttempts is spent. Only domain.ErrUniqueViolation is
// retried; any other error fails fast.
func allocateUnique(ctx context.Context, what, base string, maxAttempts int, suffix suffixFunc, insert func(candidate string) error) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultAllocationAttempts
	}
	if suffix == nil {
		suffix = randomHexSuffix
	}

	candidate := base
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 0 {
			candidate = base + "-" + suffix()
		}

		err := insert(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, domain.ErrUniqueViolation) {
			return "", err
		}
		logger.Debug("Identifier collision", "kind", what, "candidate", candidate, "attempt", attempt+1)
	}

	logger.Warn("Identifier allocation exhausted", "kind", what, "base", base, "attempts", maxAttempts)
	return "", fmt.Errorf("%s %q: %w", what, base, domain.ErrAllocationExhausted)
}

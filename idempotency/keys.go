package idempotency

import (
	"regexp"

	"github.com/google/uuid"
	perrors "github.com/jmgilman/go/errors"
)

const (
	replayPrefix = "idempotency:"
	lockPrefix   = "idempotency:lock:"

	// MaxKeyLength is the longest token accepted as an idempotency key.
	MaxKeyLength = 255
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

var (
	// ErrInvalidKey is returned, wrapped, for every rejected key.
	ErrInvalidKey = perrors.New(perrors.CodeInvalidInput, "invalid idempotency key")

	// ErrKeyReused is returned, wrapped, when a key already recorded for one
	// payload arrives with a different one.
	ErrKeyReused = perrors.New(perrors.CodeConflict, "idempotency key reused with a different payload")
)

/*
ValidateKey accepts a canonical UUID or a token of 1 to 255 characters drawn
from letters, digits, '-' and '_'. Anything else, including whitespace and
control characters, is rejected so caller input can never shape store keys.
*/
func ValidateKey(key string) error {
	if len(key) == 36 {
		if _, err := uuid.Parse(key); err == nil {
			return nil
		}
	}
	if tokenPattern.MatchString(key) {
		return nil
	}

	ctx := map[string]interface{}{"length": len(key)}
	reason := "idempotency key must be a UUID or 1-255 characters of [A-Za-z0-9_-]"
	if len(key) > MaxKeyLength {
		reason = "idempotency key longer than 255 characters"
	}
	return perrors.WrapWithContext(ErrInvalidKey, perrors.CodeInvalidInput, reason, ctx)
}

func replayKey(key string) string { return replayPrefix + key }

func lockKey(key string) string { return lockPrefix + key }

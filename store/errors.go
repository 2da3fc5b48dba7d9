package store

import (
	perrors "github.com/jmgilman/go/errors"
)

// unavailable wraps a backend failure. Context is attached so logs show the key.
func unavailable(err error, op, key string) error {
	if err == nil {
		return nil
	}
	return perrors.WrapWithContext(err, perrors.CodeUnavailable, "shared store "+op+" failed",
		map[string]interface{}{"key": key})
}

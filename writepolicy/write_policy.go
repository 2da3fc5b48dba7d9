package writepolicy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krisalay/coordcache/types"
)

/*
This file defines what a "write policy" is.

Once a value has been computed and placed in the local tier, it still has to
reach the shared tier. Some callers want the shared copy written before the
call returns (write-through), others prefer to queue it (write-back).
*/

/*
WritePolicy is the contract that all write policies must follow.
The cache does not care which policy is used. It simply calls these methods.

Failures are never returned: a value has already been handed to the caller,
so a failed shared write is logged and the cache stays best-effort.
*/
type WritePolicy interface {

	// OnWrite propagates encoded bytes for key to the shared tier.
	OnWrite(ctx context.Context, key string, data []byte, ttl time.Duration)

	// Close is called when the cache is shutting down.
	Close()
}

// Kind names a write policy in configuration.
type Kind string

const (
	WriteThrough Kind = "write-through"
	WriteBack    Kind = "write-back"
)

// New builds the policy named by kind. buffer only applies to write-back.
func New(kind Kind, store types.SharedStore, buffer int, logger *slog.Logger) (WritePolicy, error) {
	switch kind {
	case WriteThrough, "":
		return NewWriteThroughPolicy(store, logger), nil
	case WriteBack:
		return NewWriteBackPolicy(store, buffer, logger), nil
	default:
		return nil, fmt.Errorf("unknown write policy %q", kind)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

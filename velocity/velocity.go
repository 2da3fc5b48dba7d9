// Package velocity enforces per-subject daily transaction limits over the shared store.
package velocity

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/krisalay/coordcache/types"
)

const keyPrefix = "velocity:"

// Window is one counting period. Key names it in the store; End is when it rolls over.
type Window struct {
	Key string
	End time.Time
}

// DailyWindow returns the UTC calendar day containing now, keyed YYYY-MM-DD.
func DailyWindow(now time.Time) Window {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Key: start.Format(time.DateOnly), End: start.AddDate(0, 0, 1)}
}

// Limits caps a window. MaxCount <= 0 and a nil MaxValue mean unlimited.
type Limits struct {
	MaxCount int64
	MaxValue *big.Int
}

// Result reports the decision and the counter as it stands afterwards.
type Result struct {
	Allowed      bool
	CurrentCount int64
	CurrentValue *big.Int
}

// record is the stored form of a counter. Value is a decimal string so no
// precision is lost for amounts beyond 64 bits.
type record struct {
	Count int64  `msgpack:"count"`
	Value string `msgpack:"value"`
}

/*
Counter tracks a transaction count and cumulative value per subject per window.

CheckAndIncrement is a read followed by a write, not an atomic operation:
concurrent calls for the same subject can each read the same state and one
increment may be lost, or a limit overshot by the calls in flight. This
margin is accepted for a compliance heuristic.
*/
type Counter struct {
	store  types.SharedStore
	clock  types.Clock
	logger *slog.Logger
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock sets the time source used to pick the current window.
func WithClock(clk types.Clock) Option { return func(c *Counter) { c.clock = clk } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option { return func(c *Counter) { c.logger = l } }

/*
NewCounter creates a Counter over store. Counters live at
"velocity:{subject}:{window}" and expire when their window closes.
*/
func NewCounter(store types.SharedStore, opts ...Option) *Counter {
	c := &Counter{store: store, clock: types.RealClock{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

/*
CheckAndIncrement admits amount for subjectID in window when count < MaxCount
and value+amount <= MaxValue. An admitted call stores the incremented counter
with a TTL of the time left in the window; a refused call changes nothing.
Store failures are returned; the caller decides whether to fail open.
*/
func (c *Counter) CheckAndIncrement(ctx context.Context, subjectID string, window Window, amount *big.Int, limits Limits) (Result, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	if subjectID == "" {
		return Result{}, perrors.New(perrors.CodeInvalidInput, "velocity subject is required")
	}
	if amount.Sign() < 0 {
		return Result{}, perrors.WithContext(
			perrors.New(perrors.CodeInvalidInput, "velocity amount must not be negative"), "subject", subjectID)
	}

	key := storeKey(subjectID, window)
	count, value, err := c.read(ctx, key)
	if err != nil {
		return Result{}, err
	}

	next := new(big.Int).Add(value, amount)
	countOK := limits.MaxCount <= 0 || count < limits.MaxCount
	valueOK := limits.MaxValue == nil || next.Cmp(limits.MaxValue) <= 0
	if !countOK || !valueOK {
		return Result{Allowed: false, CurrentCount: count, CurrentValue: value}, nil
	}

	count++
	ttl := window.End.Sub(c.clock.Now())
	if ttl <= 0 {
		// Window already over: expire almost immediately.
		ttl = time.Second
	}

	b, err := msgpack.Marshal(record{Count: count, Value: next.String()})
	if err != nil {
		return Result{}, perrors.Wrap(err, perrors.CodeInternal, "velocity counter encode failed")
	}
	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		return Result{}, err
	}

	return Result{Allowed: true, CurrentCount: count, CurrentValue: next}, nil
}

// CheckAndIncrementNow is CheckAndIncrement over the current UTC day.
func (c *Counter) CheckAndIncrementNow(ctx context.Context, subjectID string, amount *big.Int, limits Limits) (Result, error) {
	return c.CheckAndIncrement(ctx, subjectID, DailyWindow(c.clock.Now()), amount, limits)
}

// Peek returns the counter without changing it. Absent counters read as zero.
func (c *Counter) Peek(ctx context.Context, subjectID string, window Window) (int64, *big.Int, error) {
	return c.read(ctx, storeKey(subjectID, window))
}

func (c *Counter) read(ctx context.Context, key string) (int64, *big.Int, error) {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, new(big.Int), nil
	}

	var rec record
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		c.logger.Warn("velocity counter unreadable, starting from zero", "key", key, "error", err)
		return 0, new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(rec.Value, 10)
	if !ok {
		c.logger.Warn("velocity counter value malformed, starting from zero", "key", key, "value", rec.Value)
		return 0, new(big.Int), nil
	}
	return rec.Count, value, nil
}

func storeKey(subjectID string, window Window) string {
	return keyPrefix + subjectID + ":" + window.Key
}

package server

import (
	"context"
	"strings"
	"time"

	perrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/coordcache/types"
)

// Price is the read-heavy value served through the two-tier cache.
type Price struct {
	Symbol string    `json:"symbol" msgpack:"symbol"`
	Cents  int64     `json:"cents" msgpack:"cents"`
	AsOf   time.Time `json:"as_of" msgpack:"as_of"`
}

// PriceSource is the upstream the cache protects, e.g. a market data API.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (Price, error)
}

// StaticPrices quotes from a fixed table. Unknown symbols are NOT_FOUND.
type StaticPrices struct {
	Table map[string]int64
	Clock types.Clock
}

// DefaultPrices returns the built-in quote table.
func DefaultPrices() *StaticPrices {
	return &StaticPrices{
		Table: map[string]int64{"BTC": 6_512_300, "ETH": 342_150, "SOL": 14_820, "USDC": 100},
		Clock: types.RealClock{},
	}
}

// Quote returns the price of symbol, case-insensitively.
func (s *StaticPrices) Quote(_ context.Context, symbol string) (Price, error) {
	symbol = strings.ToUpper(symbol)
	cents, ok := s.Table[symbol]
	if !ok {
		return Price{}, perrors.WithContext(perrors.New(perrors.CodeNotFound, "unknown symbol"), "symbol", symbol)
	}
	return Price{Symbol: symbol, Cents: cents, AsOf: s.Clock.Now().UTC()}, nil
}

// Symbols lists the table's symbols, used for warming.
func (s *StaticPrices) Symbols() []string {
	out := make([]string, 0, len(s.Table))
	for sym := range s.Table {
		out = append(out, sym)
	}
	return out
}

func priceKey(symbol string) string {
	return "price:" + strings.ToUpper(symbol)
}

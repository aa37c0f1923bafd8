// Package model holds the records shared by the inference, streaming and
// HTTP layers: the parsed transaction consumed by the inferrer and the trade
// record it produces.
package model

// TradeType is the closed set of events reconstructed from a transaction.
type TradeType string

const (
	TradeBuy      TradeType = "buy"
	TradeSell     TradeType = "sell"
	TradeLPAdd    TradeType = "lp_add"
	TradeLPRemove TradeType = "lp_remove"
)

// IsSwap reports whether the trade carries a price.
func (t TradeType) IsSwap() bool {
	return t == TradeBuy || t == TradeSell
}

// UnknownSignature is used when a transaction carries no signature.
const UnknownSignature = "unknown"

// Trade is one reconstructed pool event. Amounts are magnitudes; the
// direction lives in Type. A Trade is never mutated after construction.
type Trade struct {
	ID            int64     `json:"id"`
	Signature     string    `json:"signature"`
	Type          TradeType `json:"trade_type"`
	TokenAmount   float64   `json:"token_amount"`
	NativeAmount  float64   `json:"native_amount"`
	Price         *float64  `json:"price"`
	TraderAddress string    `json:"trader_address"`
	TraderPrefix  string    `json:"trader_prefix"`
	Timestamp     int64     `json:"timestamp"`
	Slot          *uint64   `json:"slot,omitempty"`
}

// Package parser reconstructs pool trades from parsed Solana transactions.
//
// The inferrer works purely from balance snapshots:
// 1. The trader is the fee payer (first account key)
// 2. The tracked token delta is summed over trader-owned token accounts
// 3. The base delta comes from trader-owned wrapped-SOL accounts, falling back
//    to the trader's lamport balance when no wrapped-SOL moved
// 4. The sign pair of the two deltas decides buy, sell, lp_add or lp_remove
//
// Nothing here performs I/O. Malformed or unrelated transactions yield no trade.
package parser

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang-pool-streamer/internal/model"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL scales raw lamport balances to SOL. It is tied to SOL's
// 9 protocol decimals and must be re-derived for any other native asset.
const LamportsPerSOL = 1_000_000_000

// TraderPrefixLen is the number of address characters kept for display.
const TraderPrefixLen = 6

var errMalformed = errors.New("malformed balance entry")

var lamportScale = decimal.NewFromInt(LamportsPerSOL)

// Inferrer maps parsed transactions to trades for one token/base mint pair.
// It is safe for concurrent use; the only shared state is the id counter.
type Inferrer struct {
	tokenMint string
	baseMint  string
	nextID    atomic.Int64
	now       func() time.Time
}

// Option configures an Inferrer.
type Option func(*Inferrer)

// WithClock replaces the wall clock used when a transaction has no block time.
func WithClock(now func() time.Time) Option {
	return func(inf *Inferrer) {
		inf.now = now
	}
}

// NewInferrer creates an inferrer tracking tokenMint against baseMint.
func NewInferrer(tokenMint, baseMint string, opts ...Option) *Inferrer {
	inf := &Inferrer{
		tokenMint: tokenMint,
		baseMint:  baseMint,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(inf)
	}
	return inf
}

// Infer returns the trade carried by tx, or false when the transaction did not
// move the tracked assets for its signer or cannot be priced.
func (inf *Inferrer) Infer(tx *model.Transaction) (*model.Trade, bool) {
	trader, ok := tx.Signer()
	if !ok {
		return nil, false
	}

	assetChange, err := ownerDelta(tx, inf.tokenMint, trader)
	if err != nil || assetChange.IsZero() {
		return nil, false
	}

	baseChange, err := ownerDelta(tx, inf.baseMint, trader)
	if err != nil {
		return nil, false
	}
	if baseChange.IsZero() {
		baseChange, err = nativeDelta(tx, trader)
		if err != nil || baseChange.IsZero() {
			return nil, false
		}
	}

	tradeType, ok := Classify(assetChange.Sign(), baseChange.Sign())
	if !ok {
		return nil, false
	}

	trade := &model.Trade{
		ID:            inf.nextID.Add(1),
		Signature:     firstSignature(tx),
		Type:          tradeType,
		TokenAmount:   assetChange.Abs().InexactFloat64(),
		NativeAmount:  baseChange.Abs().InexactFloat64(),
		TraderAddress: trader,
		TraderPrefix:  prefix(trader, TraderPrefixLen),
		Timestamp:     inf.timestamp(tx),
		Slot:          tx.Slot,
	}
	if tradeType.IsSwap() {
		price := trade.NativeAmount / trade.TokenAmount
		trade.Price = &price
	}
	return trade, true
}

// Classify maps the signs of the token and base deltas to a trade type.
// Signs are -1, 0 or +1; any pair containing zero is not a trade.
func Classify(assetSign, baseSign int) (model.TradeType, bool) {
	switch {
	case assetSign < 0 && baseSign < 0:
		return model.TradeLPAdd, true
	case assetSign > 0 && baseSign > 0:
		return model.TradeLPRemove, true
	case assetSign > 0 && baseSign < 0:
		return model.TradeBuy, true
	case assetSign < 0 && baseSign > 0:
		return model.TradeSell, true
	}
	return "", false
}

// ownerDelta sums post minus pre over the token balances of mint owned by owner.
func ownerDelta(tx *model.Transaction, mint, owner string) (decimal.Decimal, error) {
	post, err := sumOwned(tx.PostTokenBalances, mint, owner)
	if err != nil {
		return decimal.Zero, err
	}
	pre, err := sumOwned(tx.PreTokenBalances, mint, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return post.Sub(pre), nil
}

func sumOwned(balances []model.TokenBalance, mint, owner string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range balances {
		if b.Mint != mint || b.Owner != owner {
			continue
		}
		amount, err := decimal.NewFromString(b.UIAmount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: account %d: %v", errMalformed, b.AccountIndex, err)
		}
		total = total.Add(amount)
	}
	return total, nil
}

// nativeDelta is the trader's lamport change expressed in SOL.
func nativeDelta(tx *model.Transaction, trader string) (decimal.Decimal, error) {
	idx := -1
	for i, key := range tx.AccountKeys {
		if key == trader {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return decimal.Zero, fmt.Errorf("%w: no lamport balance for signer", errMalformed)
	}
	pre := decimal.NewFromInt(int64(tx.PreBalances[idx]))
	post := decimal.NewFromInt(int64(tx.PostBalances[idx]))
	return post.Sub(pre).Div(lamportScale), nil
}

// timestamp prefers block time. The wall-clock fallback is approximate and
// can misorder historical trades that lack a block time.
func (inf *Inferrer) timestamp(tx *model.Transaction) int64 {
	if tx.BlockTime != nil {
		return *tx.BlockTime * 1000
	}
	return inf.now().UnixMilli()
}

func firstSignature(tx *model.Transaction) string {
	for _, sig := range tx.Signatures {
		if sig != "" {
			return sig
		}
	}
	return model.UnknownSignature
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

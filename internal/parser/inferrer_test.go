package parser

import (
	"testing"
	"time"

	"golang-pool-streamer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "TokenMint1111111111111111111111111111111111"
	testBase   = "So11111111111111111111111111111111111111112"
	testTrader = "Trader9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testPool   = "PoolAuthority11111111111111111111111111111111"
)

func newTestInferrer() *Inferrer {
	fixed := time.UnixMilli(1_700_000_000_123)
	return NewInferrer(testToken, testBase, WithClock(func() time.Time { return fixed }))
}

// swapTx builds a transaction where the trader holds one token account and
// one optional wrapped-SOL account.
func swapTx(tokenPre, tokenPost, basePre, basePost string, lamportsPre, lamportsPost uint64) *model.Transaction {
	blockTime := int64(1_700_000_000)
	slot := uint64(250_000_000)
	tx := &model.Transaction{
		Signatures:   []string{"5sigAAAA"},
		AccountKeys:  []string{testTrader, "tokenAcct", "wsolAcct", testPool},
		PreBalances:  []uint64{lamportsPre, 2_039_280, 2_039_280, 0},
		PostBalances: []uint64{lamportsPost, 2_039_280, 2_039_280, 0},
		BlockTime:    &blockTime,
		Slot:         &slot,
	}
	tx.PreTokenBalances = append(tx.PreTokenBalances, model.TokenBalance{AccountIndex: 1, Mint: testToken, Owner: testTrader, UIAmount: tokenPre})
	tx.PostTokenBalances = append(tx.PostTokenBalances, model.TokenBalance{AccountIndex: 1, Mint: testToken, Owner: testTrader, UIAmount: tokenPost})
	if basePre != "" || basePost != "" {
		tx.PreTokenBalances = append(tx.PreTokenBalances, model.TokenBalance{AccountIndex: 2, Mint: testBase, Owner: testTrader, UIAmount: basePre})
		tx.PostTokenBalances = append(tx.PostTokenBalances, model.TokenBalance{AccountIndex: 2, Mint: testBase, Owner: testTrader, UIAmount: basePost})
	}
	return tx
}

func TestInfer_BuyFromLamportFallback(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "1200", "", "", 5_000_000_000, 4_000_000_000)

	trade, ok := inf.Infer(tx)
	require.True(t, ok)

	assert.Equal(t, model.TradeBuy, trade.Type)
	assert.Equal(t, 200.0, trade.TokenAmount)
	assert.Equal(t, 1.0, trade.NativeAmount)
	require.NotNil(t, trade.Price)
	assert.Equal(t, 0.005, *trade.Price)
	assert.Equal(t, testTrader, trade.TraderAddress)
	assert.Equal(t, testTrader[:6], trade.TraderPrefix)
	assert.Equal(t, "5sigAAAA", trade.Signature)
	assert.Equal(t, int64(1_700_000_000_000), trade.Timestamp)
	require.NotNil(t, trade.Slot)
	assert.Equal(t, uint64(250_000_000), *trade.Slot)
}

func TestInfer_LPRemoveWhenBothPositive(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "1200", "10", "60", 5_000_000_000, 4_000_000_000)

	trade, ok := inf.Infer(tx)
	require.True(t, ok)

	assert.Equal(t, model.TradeLPRemove, trade.Type)
	assert.Equal(t, 200.0, trade.TokenAmount)
	assert.Equal(t, 50.0, trade.NativeAmount)
	assert.Nil(t, trade.Price)
}

func TestInfer_WrappedSOLPreferredOverLamports(t *testing.T) {
	inf := newTestInferrer()
	// wrapped SOL shows a sell of 2 SOL even though lamports went down by fees
	tx := swapTx("500", "100", "1", "3", 5_000_000_000, 4_999_995_000)

	trade, ok := inf.Infer(tx)
	require.True(t, ok)

	assert.Equal(t, model.TradeSell, trade.Type)
	assert.Equal(t, 400.0, trade.TokenAmount)
	assert.Equal(t, 2.0, trade.NativeAmount)
	require.NotNil(t, trade.Price)
	assert.Equal(t, 2.0/400.0, *trade.Price)
}

func TestInfer_LPAdd(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "400", "", "", 9_000_000_000, 6_500_000_000)

	trade, ok := inf.Infer(tx)
	require.True(t, ok)

	assert.Equal(t, model.TradeLPAdd, trade.Type)
	assert.Equal(t, 600.0, trade.TokenAmount)
	assert.Equal(t, 2.5, trade.NativeAmount)
	assert.Nil(t, trade.Price)
}

func TestInfer_NoTokenMovement(t *testing.T) {
	inf := newTestInferrer()

	cases := map[string]*model.Transaction{
		"lamports moved":      swapTx("1000", "1000", "", "", 5_000_000_000, 4_000_000_000),
		"wrapped sol moved":   swapTx("1000", "1000", "1", "9", 5_000_000_000, 5_000_000_000),
		"nothing moved":       swapTx("1000", "1000", "", "", 5_000_000_000, 5_000_000_000),
		"equivalent decimals": swapTx("1000", "1000.000", "", "", 5_000_000_000, 1_000_000_000),
	}
	for name, tx := range cases {
		t.Run(name, func(t *testing.T) {
			trade, ok := inf.Infer(tx)
			assert.False(t, ok)
			assert.Nil(t, trade)
		})
	}
}

func TestInfer_CannotPrice(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "1200", "", "", 5_000_000_000, 5_000_000_000)

	_, ok := inf.Infer(tx)
	assert.False(t, ok)
}

func TestInfer_SumsAcrossTraderAccountsOnly(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("100", "150", "", "", 3_000_000_000, 2_000_000_000)
	// second trader-owned token account
	tx.PreTokenBalances = append(tx.PreTokenBalances, model.TokenBalance{AccountIndex: 4, Mint: testToken, Owner: testTrader, UIAmount: "0"})
	tx.PostTokenBalances = append(tx.PostTokenBalances, model.TokenBalance{AccountIndex: 4, Mint: testToken, Owner: testTrader, UIAmount: "25.5"})
	// pool vault moves the other way and must be ignored
	tx.PreTokenBalances = append(tx.PreTokenBalances, model.TokenBalance{AccountIndex: 3, Mint: testToken, Owner: testPool, UIAmount: "1000000"})
	tx.PostTokenBalances = append(tx.PostTokenBalances, model.TokenBalance{AccountIndex: 3, Mint: testToken, Owner: testPool, UIAmount: "999924.5"})

	trade, ok := inf.Infer(tx)
	require.True(t, ok)
	assert.Equal(t, model.TradeBuy, trade.Type)
	assert.Equal(t, 75.5, trade.TokenAmount)
}

func TestInfer_AccountOnlyInPostBalances(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("0", "0", "", "", 3_000_000_000, 2_000_000_000)
	tx.PreTokenBalances = nil
	tx.PostTokenBalances = []model.TokenBalance{{AccountIndex: 1, Mint: testToken, Owner: testTrader, UIAmount: "42"}}

	trade, ok := inf.Infer(tx)
	require.True(t, ok)
	assert.Equal(t, model.TradeBuy, trade.Type)
	assert.Equal(t, 42.0, trade.TokenAmount)
}

func TestInfer_MalformedInput(t *testing.T) {
	inf := newTestInferrer()

	badAmount := swapTx("1000", "abc", "", "", 5_000_000_000, 4_000_000_000)
	missingLamports := swapTx("1000", "1200", "", "", 5_000_000_000, 4_000_000_000)
	missingLamports.PreBalances = nil
	noKeys := swapTx("1000", "1200", "", "", 5_000_000_000, 4_000_000_000)
	noKeys.AccountKeys = nil

	cases := map[string]*model.Transaction{
		"nil transaction":  nil,
		"empty record":     {},
		"bad ui amount":    badAmount,
		"missing lamports": missingLamports,
		"no account keys":  noKeys,
	}
	for name, tx := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				trade, ok := inf.Infer(tx)
				assert.False(t, ok)
				assert.Nil(t, trade)
			})
		})
	}
}

func TestInfer_FallbacksForSignatureAndTime(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "1200", "", "", 5_000_000_000, 4_000_000_000)
	tx.Signatures = nil
	tx.BlockTime = nil
	tx.Slot = nil

	trade, ok := inf.Infer(tx)
	require.True(t, ok)
	assert.Equal(t, model.UnknownSignature, trade.Signature)
	assert.Equal(t, int64(1_700_000_000_123), trade.Timestamp)
	assert.Nil(t, trade.Slot)
}

func TestInfer_IDsIncrease(t *testing.T) {
	inf := newTestInferrer()
	tx := swapTx("1000", "1200", "", "", 5_000_000_000, 4_000_000_000)

	first, ok := inf.Infer(tx)
	require.True(t, ok)
	second, ok := inf.Infer(tx)
	require.True(t, ok)
	assert.Greater(t, second.ID, first.ID)
}

func TestInfer_AmountsPositiveAndPriceOnlyForSwaps(t *testing.T) {
	inf := newTestInferrer()
	deltas := []struct{ tokenPre, tokenPost, basePre, basePost string }{
		{"10", "20", "5", "1"},
		{"20", "10", "1", "5"},
		{"20", "10", "5", "1"},
		{"10", "20", "1", "5"},
		{"0.000001", "0.000003", "0.5", "0.25"},
	}
	for _, d := range deltas {
		trade, ok := inf.Infer(swapTx(d.tokenPre, d.tokenPost, d.basePre, d.basePost, 1, 1))
		require.True(t, ok)
		assert.Greater(t, trade.TokenAmount, 0.0)
		assert.Greater(t, trade.NativeAmount, 0.0)
		if trade.Type.IsSwap() {
			require.NotNil(t, trade.Price)
			assert.Equal(t, trade.NativeAmount/trade.TokenAmount, *trade.Price)
		} else {
			assert.Nil(t, trade.Price)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		asset, base int
		want        model.TradeType
		ok          bool
	}{
		{-1, -1, model.TradeLPAdd, true},
		{1, 1, model.TradeLPRemove, true},
		{1, -1, model.TradeBuy, true},
		{-1, 1, model.TradeSell, true},
		{0, 0, "", false},
		{0, 1, "", false},
		{1, 0, "", false},
		{0, -1, "", false},
		{-1, 0, "", false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.asset, tt.base)
		assert.Equal(t, tt.ok, ok, "signs (%d,%d)", tt.asset, tt.base)
		assert.Equal(t, tt.want, got, "signs (%d,%d)", tt.asset, tt.base)
	}
}

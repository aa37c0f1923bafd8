package chain

import (
	"strconv"

	"golang-pool-streamer/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// FromRPC converts a decoded transaction and its status meta. Account keys are
// the static keys followed by the loaded writable and readonly addresses, the
// same order the balance tables are indexed in.
func FromRPC(tx *solana.Transaction, meta *rpc.TransactionMeta, slot uint64, blockTime *solana.UnixTimeSeconds) *model.Transaction {
	out := &model.Transaction{}
	if slot > 0 {
		s := slot
		out.Slot = &s
	}
	if blockTime != nil {
		bt := int64(*blockTime)
		out.BlockTime = &bt
	}

	if tx != nil {
		for _, sig := range tx.Signatures {
			out.Signatures = append(out.Signatures, sig.String())
		}
		for _, key := range tx.Message.AccountKeys {
			out.AccountKeys = append(out.AccountKeys, key.String())
		}
	}

	if meta == nil {
		return out
	}
	for _, key := range meta.LoadedAddresses.Writable {
		out.AccountKeys = append(out.AccountKeys, key.String())
	}
	for _, key := range meta.LoadedAddresses.ReadOnly {
		out.AccountKeys = append(out.AccountKeys, key.String())
	}
	out.PreBalances = meta.PreBalances
	out.PostBalances = meta.PostBalances
	out.PreTokenBalances = convertTokenBalances(meta.PreTokenBalances)
	out.PostTokenBalances = convertTokenBalances(meta.PostTokenBalances)
	return out
}

func convertTokenBalances(in []rpc.TokenBalance) []model.TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := model.TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.UIAmount = UIAmountString(b.UiTokenAmount.UiAmountString, b.UiTokenAmount.UiAmount, b.UiTokenAmount.Amount, int32(b.UiTokenAmount.Decimals))
		}
		out = append(out, tb)
	}
	return out
}

// UIAmountString picks the node's decimal string, then the raw integer amount
// shifted by decimals, then the float. An empty result marks the entry malformed.
func UIAmountString(uiString string, uiAmount *float64, raw string, decimals int32) string {
	if uiString != "" {
		return uiString
	}
	if raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			return d.Shift(-decimals).String()
		}
	}
	if uiAmount != nil {
		return strconv.FormatFloat(*uiAmount, 'f', -1, 64)
	}
	return ""
}

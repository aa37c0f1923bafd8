package model

// TokenBalance is one entry of a transaction's pre or post token balance table.
// UIAmount is the decimal string reported by the node (uiAmountString).
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     string
}

// Transaction is a transaction already decoded into balance tables. It is
// source-agnostic: RPC results and Yellowstone updates are both converted to it.
type Transaction struct {
	Signatures        []string
	AccountKeys       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	BlockTime         *int64 // unix seconds
	Slot              *uint64
}

// Signer returns the fee payer, which is always the first account key.
func (tx *Transaction) Signer() (string, bool) {
	if tx == nil || len(tx.AccountKeys) == 0 || tx.AccountKeys[0] == "" {
		return "", false
	}
	return tx.AccountKeys[0], true
}

// Package chain adapts the solana-go RPC and WebSocket clients to the
// narrow boundary the streamer consumes: account lookups, signature history,
// parsed transactions, token-account scans and log subscriptions.
package chain

import (
	"context"
	"errors"
	"fmt"

	"golang-pool-streamer/internal/model"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MaxSignaturesPage is the node-side cap for getSignaturesForAddress.
const MaxSignaturesPage = 1000

// SPL token account layout: the amount is a little-endian u64 at offset 64
// of a 165-byte account whose first 32 bytes are the mint.
const (
	tokenAccountSize   = 165
	tokenAmountOffset  = 64
	tokenAmountLength  = 8
	tokenAccountMintAt = 0
)

var (
	// ErrTransactionNotFound is returned when the node has no record of a signature.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAddress wraps base58 decode failures of caller-supplied addresses.
	ErrInvalidAddress = errors.New("invalid address")
)

// Client wraps a solana-go RPC client.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// NewClient creates a client against endpoint at the given commitment.
func NewClient(endpoint string, commitment rpc.CommitmentType) *Client {
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: commitment,
	}
}

// Health checks that the node answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.rpc.GetHealth(ctx)
	return err
}

// AccountExists reports whether address resolves to an on-chain account.
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	out, err := c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out != nil && out.Value != nil, nil
}

// SignaturesForAddress returns up to limit signatures for address, newest
// first, strictly older than before when before is set.
func (c *Client) SignaturesForAddress(ctx context.Context, address, before string, limit int) ([]string, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	if limit <= 0 || limit > MaxSignaturesPage {
		limit = MaxSignaturesPage
	}

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	}
	if before != "" {
		sig, err := solana.SignatureFromBase58(before)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", before, err)
		}
		opts.Before = sig
	}

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pk, opts)
	if err != nil {
		return nil, err
	}

	sigs := make([]string, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		sigs = append(sigs, s.Signature.String())
	}
	return sigs, nil
}

// Transaction fetches and decodes the transaction identified by signature.
func (c *Client) Transaction(ctx context.Context, signature string) (*model.Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	version := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		MaxSupportedTransactionVersion: &version,
		Commitment:                     c.fetchCommitment(),
		Encoding:                       solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Transaction == nil || out.Meta == nil {
		return nil, ErrTransactionNotFound
	}

	decoded, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return FromRPC(decoded, out.Meta, out.Slot, out.BlockTime), nil
}

// TokenAccountAmounts scans every SPL token account of mint and returns the
// raw amount held by each.
func (c *Client) TokenAccountAmounts(ctx context.Context, mint string) ([]uint64, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, mint, err)
	}

	offset := uint64(tokenAmountOffset)
	length := uint64(tokenAmountLength)
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
		DataSlice: &rpc.DataSlice{
			Offset: &offset,
			Length: &length,
		},
		Filters: []rpc.RPCFilter{
			{DataSize: tokenAccountSize},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: tokenAccountMintAt,
				Bytes:  solana.Base58(mintKey.Bytes()),
			}},
		},
	})
	if err != nil {
		return nil, err
	}

	amounts := make([]uint64, 0, len(out))
	for _, acct := range out {
		if acct == nil || acct.Account == nil || acct.Account.Data == nil {
			continue
		}
		amount, err := DecodeAmount(acct.Account.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Pubkey, err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

// DecodeAmount reads the little-endian u64 of a sliced token-account amount.
func DecodeAmount(data []byte) (uint64, error) {
	if len(data) < tokenAmountLength {
		return 0, fmt.Errorf("amount slice too short: %d bytes", len(data))
	}
	return bin.NewBinDecoder(data).ReadUint64(bin.LE)
}

// getTransaction rejects processed commitment, so fetches use confirmed at minimum.
func (c *Client) fetchCommitment() rpc.CommitmentType {
	if c.commitment == rpc.CommitmentProcessed {
		return rpc.CommitmentConfirmed
	}
	return c.commitment
}

package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// LogSubscription yields signatures of transactions whose logs mention an address.
type LogSubscription struct {
	client *ws.Client
	sub    *ws.LogSubscription
}

// SubscribeLogs connects to wsEndpoint and subscribes to logs mentioning address.
func SubscribeLogs(ctx context.Context, wsEndpoint, address string, commitment rpc.CommitmentType) (*LogSubscription, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	client, err := ws.Connect(ctx, wsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("connect websocket: %w", err)
	}

	sub, err := client.LogsSubscribeMentions(pk, commitment)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}

	return &LogSubscription{client: client, sub: sub}, nil
}

// Next blocks until the next notification. Failed transactions are reported
// with failed set so callers can skip them without a fetch.
func (s *LogSubscription) Next(ctx context.Context) (signature string, failed bool, err error) {
	result, err := s.sub.Recv(ctx)
	if err != nil {
		return "", false, err
	}
	if result == nil {
		return "", false, fmt.Errorf("empty log notification")
	}
	return result.Value.Signature.String(), result.Value.Err != nil, nil
}

// Close unsubscribes and closes the connection.
func (s *LogSubscription) Close() error {
	s.sub.Unsubscribe()
	s.client.Close()
	return nil
}

// WebSocketEndpoint derives the websocket URL from an HTTP(S) RPC endpoint.
//
// Examples:
//   - "https://api.mainnet-beta.solana.com" -> "wss://api.mainnet-beta.solana.com"
//   - "http://localhost:8899" -> "ws://localhost:8899"
func WebSocketEndpoint(httpEndpoint string) string {
	if strings.HasPrefix(httpEndpoint, "https://") {
		return "wss://" + httpEndpoint[len("https://"):]
	} else if strings.HasPrefix(httpEndpoint, "http://") {
		return "ws://" + httpEndpoint[len("http://"):]
	}
	return httpEndpoint
}

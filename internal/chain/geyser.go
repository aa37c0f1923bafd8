package chain

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"golang-pool-streamer/internal/model"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

const maxGeyserMessageSize = 1024 * 1024 * 1024

// GeyserConn is a connection to a Yellowstone gRPC endpoint.
type GeyserConn struct {
	conn   *grpc.ClientConn
	client pb.GeyserClient
	token  string
}

// DialGeyser connects to endpoint. An https:// scheme or a :443 port selects
// TLS; anything else is plaintext. token is sent as x-token on every stream.
func DialGeyser(endpoint, token string) (*GeyserConn, error) {
	target, useTLS := GeyserTarget(endpoint)
	if target == "" {
		return nil, fmt.Errorf("empty gRPC endpoint")
	}

	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{})
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGeyserMessageSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial geyser: %w", err)
	}

	return &GeyserConn{conn: conn, client: pb.NewGeyserClient(conn), token: token}, nil
}

// SubscribeTransactions opens a stream of successful, non-vote transactions
// that include account.
func (g *GeyserConn) SubscribeTransactions(ctx context.Context, account string, commitment rpc.CommitmentType) (pb.Geyser_SubscribeClient, error) {
	if g.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-token", g.token)
	}

	stream, err := g.client.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("open geyser stream: %w", err)
	}

	if err := stream.Send(TransactionRequest(account, commitment)); err != nil {
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	return stream, nil
}

func (g *GeyserConn) Close() error {
	return g.conn.Close()
}

// TransactionRequest builds the subscribe request filtering on account.
func TransactionRequest(account string, commitment rpc.CommitmentType) *pb.SubscribeRequest {
	return &pb.SubscribeRequest{
		Transactions: map[string]*pb.SubscribeRequestFilterTransactions{
			"pool": {
				Vote:           proto.Bool(false),
				Failed:         proto.Bool(false),
				AccountInclude: []string{account},
			},
		},
		Commitment: geyserCommitment(commitment),
	}
}

func geyserCommitment(c rpc.CommitmentType) *pb.CommitmentLevel {
	switch c {
	case rpc.CommitmentProcessed:
		return pb.CommitmentLevel_PROCESSED.Enum()
	case rpc.CommitmentFinalized:
		return pb.CommitmentLevel_FINALIZED.Enum()
	default:
		return pb.CommitmentLevel_CONFIRMED.Enum()
	}
}

// GeyserTarget strips the URL scheme from endpoint and reports whether TLS
// should be used. TLS targets without a port get :443.
func GeyserTarget(endpoint string) (target string, useTLS bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		target, useTLS = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		target = strings.TrimPrefix(endpoint, "http://")
	default:
		target = endpoint
	}
	target = strings.TrimSuffix(target, "/")

	_, port, err := net.SplitHostPort(target)
	if err == nil && port == "443" {
		useTLS = true
	}
	if err != nil && useTLS && target != "" {
		target += ":443"
	}
	return target, useTLS
}

// FromGeyser converts a streamed transaction. Keys and signatures arrive as
// raw bytes and are base58 encoded. The stream carries no block time.
func FromGeyser(update *pb.SubscribeUpdateTransaction) *model.Transaction {
	out := &model.Transaction{}
	if update == nil {
		return out
	}
	if slot := update.GetSlot(); slot > 0 {
		out.Slot = &slot
	}

	info := update.GetTransaction()
	if info == nil {
		return out
	}

	if sig := info.GetSignature(); len(sig) > 0 {
		out.Signatures = append(out.Signatures, base58.Encode(sig))
	} else {
		for _, s := range info.GetTransaction().GetSignatures() {
			out.Signatures = append(out.Signatures, base58.Encode(s))
		}
	}

	for _, key := range info.GetTransaction().GetMessage().GetAccountKeys() {
		out.AccountKeys = append(out.AccountKeys, base58.Encode(key))
	}

	meta := info.GetMeta()
	if meta == nil {
		return out
	}
	for _, key := range meta.GetLoadedWritableAddresses() {
		out.AccountKeys = append(out.AccountKeys, base58.Encode(key))
	}
	for _, key := range meta.GetLoadedReadonlyAddresses() {
		out.AccountKeys = append(out.AccountKeys, base58.Encode(key))
	}
	out.PreBalances = meta.GetPreBalances()
	out.PostBalances = meta.GetPostBalances()
	out.PreTokenBalances = convertGeyserBalances(meta.GetPreTokenBalances())
	out.PostTokenBalances = convertGeyserBalances(meta.GetPostTokenBalances())
	return out
}

func convertGeyserBalances(in []*pb.TokenBalance) []model.TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.TokenBalance, 0, len(in))
	for _, b := range in {
		if b == nil {
			continue
		}
		tb := model.TokenBalance{
			AccountIndex: int(b.GetAccountIndex()),
			Mint:         b.GetMint(),
			Owner:        b.GetOwner(),
		}
		if amt := b.GetUiTokenAmount(); amt != nil {
			ui := amt.GetUiAmount()
			tb.UIAmount = UIAmountString(amt.GetUiAmountString(), &ui, amt.GetAmount(), int32(amt.GetDecimals()))
		}
		out = append(out, tb)
	}
	return out
}

package monitor

import (
	"context"
	"errors"
	"io"

	"golang-pool-streamer/internal/chain"
	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/sirupsen/logrus"
)

const yellowstoneSource = "yellowstone"

// ErrStreamClosed is returned when the gRPC server ends the stream.
var ErrStreamClosed = errors.New("geyser stream closed by server")

// UpdateStream is the bidirectional Geyser subscription.
// pb.Geyser_SubscribeClient satisfies it.
type UpdateStream interface {
	Send(*pb.SubscribeRequest) error
	Recv() (*pb.SubscribeUpdate, error)
}

// SubscribeFunc opens a transaction stream already filtered on the pool.
type SubscribeFunc func(ctx context.Context) (UpdateStream, error)

// YellowstoneListenerOptions configures a YellowstoneListener.
type YellowstoneListenerOptions struct {
	Subscribe SubscribeFunc
	Inferrer  Inferrer
	Metrics   *metrics.Metrics
}

// YellowstoneListener tails the pool through a Yellowstone gRPC stream.
type YellowstoneListener struct {
	subscribe SubscribeFunc
	processor
}

func NewYellowstoneListener(opts YellowstoneListenerOptions) *YellowstoneListener {
	return &YellowstoneListener{
		subscribe: opts.Subscribe,
		processor: processor{
			source:   yellowstoneSource,
			inferrer: opts.Inferrer,
			metrics:  opts.Metrics,
		},
	}
}

// Run receives updates until ctx is cancelled or the stream fails. Server
// pings are answered so the stream stays open. Like LogListener it does not
// reconnect.
func (y *YellowstoneListener) Run(ctx context.Context, sink Publisher) error {
	logrus.Info("📡 Subscribing to Yellowstone transaction stream...")

	stream, err := y.subscribe(ctx)
	if err != nil {
		return err
	}

	logrus.Info("✅ Successfully subscribed to Yellowstone stream")

	for {
		update, err := stream.Recv()
		if err != nil {
			if stopped(ctx) {
				logrus.Info("🛑 Stopping Yellowstone subscription")
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return err
		}

		if update.GetPing() != nil {
			if err := stream.Send(&pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: 1}}); err != nil {
				logrus.WithError(err).Warn("⚠️ Failed to answer geyser ping")
			}
			continue
		}

		txUpdate := update.GetTransaction()
		if txUpdate == nil {
			continue
		}

		tx := chain.FromGeyser(txUpdate)
		if len(tx.Signatures) > 0 {
			logrus.WithField("signature", utils.ShortSig(tx.Signatures[0])).Debug("📥 Processing pool transaction")
		}
		y.process(tx, sink)
	}
}

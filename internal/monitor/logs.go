package monitor

import (
	"context"

	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/model"
	"golang-pool-streamer/internal/retry"
	"golang-pool-streamer/internal/utils"

	"github.com/sirupsen/logrus"
)

const logsSource = "logs"

// LogStream yields signatures of transactions that mention the pool.
// *chain.LogSubscription satisfies it.
type LogStream interface {
	Next(ctx context.Context) (signature string, failed bool, err error)
	Close() error
}

// DialFunc opens a new log stream.
type DialFunc func(ctx context.Context) (LogStream, error)

// Fetcher loads a transaction by signature.
type Fetcher interface {
	Transaction(ctx context.Context, signature string) (*model.Transaction, error)
}

// LogListenerOptions configures a LogListener.
type LogListenerOptions struct {
	Dial     DialFunc
	Fetcher  Fetcher
	Inferrer Inferrer
	Policy   retry.Policy
	Metrics  *metrics.Metrics
}

// LogListener tails the pool through websocket log notifications.
type LogListener struct {
	dial    DialFunc
	fetcher Fetcher
	policy  retry.Policy
	processor
}

func NewLogListener(opts LogListenerOptions) *LogListener {
	return &LogListener{
		dial:    opts.Dial,
		fetcher: opts.Fetcher,
		policy:  opts.Policy,
		processor: processor{
			source:   logsSource,
			inferrer: opts.Inferrer,
			metrics:  opts.Metrics,
		},
	}
}

// Run subscribes and processes notifications until ctx is cancelled or the
// stream fails. It does not reconnect: a receive error is returned to the
// caller. Cancellation returns nil.
func (l *LogListener) Run(ctx context.Context, sink Publisher) error {
	logrus.Info("📡 Subscribing to pool logs...")

	stream, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	logrus.Info("✅ Successfully subscribed to pool logs")

	for {
		signature, failed, err := stream.Next(ctx)
		if err != nil {
			if stopped(ctx) {
				logrus.Info("🛑 Stopping log subscription")
				return nil
			}
			return err
		}
		if failed {
			logrus.WithField("signature", utils.ShortSig(signature)).Debug("Skipping failed transaction")
			continue
		}

		l.handle(ctx, signature, sink)
	}
}

func (l *LogListener) handle(ctx context.Context, signature string, sink Publisher) {
	logrus.WithField("signature", utils.ShortSig(signature)).Debug("📥 Processing pool transaction")

	tx, err := retry.Do(ctx, l.policy, func(ctx context.Context) (*model.Transaction, error) {
		return l.fetcher.Transaction(ctx, signature)
	})
	if err != nil {
		l.countFailure()
		logrus.WithFields(logrus.Fields{
			"signature": utils.ShortSig(signature),
			"error":     err.Error(),
		}).Warn("⚠️ Failed to get transaction")
		return
	}

	l.process(tx, sink)
}

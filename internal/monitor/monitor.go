// Package monitor tails new pool transactions and feeds them into the hub.
//
// Two live sources share the same processing step:
// 1. LogListener subscribes to log mentions of the pool over the RPC
//    websocket and fetches each transaction by signature
// 2. YellowstoneListener receives full transactions from a Geyser gRPC
//    stream, so no second fetch is needed
//
// Every transaction goes through the inferrer and, when a trade results, is
// published. A failure on one transaction never stops the listener.
package monitor

import (
	"context"

	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/model"

	"github.com/sirupsen/logrus"
)

// Publisher receives every live trade. *hub.Hub satisfies it.
type Publisher interface {
	Publish(trade *model.Trade)
}

// Inferrer turns a parsed transaction into at most one trade.
type Inferrer interface {
	Infer(tx *model.Transaction) (*model.Trade, bool)
}

type processor struct {
	source   string
	inferrer Inferrer
	metrics  *metrics.Metrics
}

// process infers a trade from tx and publishes it. It reports whether a
// trade was published.
func (p *processor) process(tx *model.Transaction, sink Publisher) bool {
	if p.metrics != nil {
		p.metrics.TransactionsProcessed.WithLabelValues(p.source).Inc()
	}

	trade, ok := p.inferrer.Infer(tx)
	if !ok {
		logrus.WithField("source", p.source).Debug("No pool trade in transaction")
		return false
	}

	if p.metrics != nil {
		p.metrics.TradesInferred.WithLabelValues(p.source, string(trade.Type)).Inc()
	}

	logrus.WithFields(logrus.Fields{
		"type":   trade.Type,
		"token":  trade.TokenAmount,
		"native": trade.NativeAmount,
		"trader": trade.TraderPrefix,
		"source": p.source,
	}).Info("💱 Live trade")

	sink.Publish(trade)
	return true
}

func (p *processor) countFailure() {
	if p.metrics != nil {
		p.metrics.FetchFailures.WithLabelValues(p.source).Inc()
	}
}

func stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}

// Package backfill rebuilds the trade history from the pool's signature
// history at startup.
package backfill

import (
	"context"
	"sort"
	"time"

	"golang-pool-streamer/internal/chain"
	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/model"
	"golang-pool-streamer/internal/retry"
	"golang-pool-streamer/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPauseEvery = 25
	DefaultPause      = 300 * time.Millisecond
	sourceLabel       = "backfill"
)

// Source is the slice of the RPC boundary the pipeline pages through.
type Source interface {
	SignaturesForAddress(ctx context.Context, address, before string, limit int) ([]string, error)
	Transaction(ctx context.Context, signature string) (*model.Transaction, error)
}

// Inferrer turns a parsed transaction into at most one trade.
type Inferrer interface {
	Infer(tx *model.Transaction) (*model.Trade, bool)
}

// Sink receives the finished history, replacing whatever it held.
type Sink interface {
	Replace(trades []*model.Trade)
}

// Options configures a Pipeline. Zero values take the defaults.
type Options struct {
	Source     Source
	Inferrer   Inferrer
	Sink       Sink
	Pool       string
	Policy     retry.Policy
	PageSize   int
	PauseEvery int
	Pause      time.Duration
	Metrics    *metrics.Metrics
}

// Pipeline fetches and infers historical pool transactions.
type Pipeline struct {
	source     Source
	inferrer   Inferrer
	sink       Sink
	pool       string
	policy     retry.Policy
	pageSize   int
	pauseEvery int
	pause      time.Duration
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration)
}

// Result summarizes a run.
type Result struct {
	Signatures int
	Trades     int
	Skipped    int
	Failed     int
	Duration   time.Duration
}

// New creates a pipeline from opts.
func New(opts Options) *Pipeline {
	if opts.PageSize <= 0 || opts.PageSize > chain.MaxSignaturesPage {
		opts.PageSize = chain.MaxSignaturesPage
	}
	if opts.PauseEvery <= 0 {
		opts.PauseEvery = DefaultPauseEvery
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	return &Pipeline{
		source:     opts.Source,
		inferrer:   opts.Inferrer,
		sink:       opts.Sink,
		pool:       opts.Pool,
		policy:     opts.Policy,
		pageSize:   opts.PageSize,
		pauseEvery: opts.PauseEvery,
		pause:      opts.Pause,
		metrics:    opts.Metrics,
		sleep:      pauseContext,
	}
}

// Run collects up to n signatures, infers their trades, sorts them newest
// first and hands them to the sink. Individual failures are skipped.
func (p *Pipeline) Run(ctx context.Context, n int) ([]*model.Trade, Result) {
	start := time.Now()
	var res Result

	signatures := p.Signatures(ctx, n)
	res.Signatures = len(signatures)

	logrus.WithFields(logrus.Fields{
		"pool":       p.pool,
		"signatures": len(signatures),
	}).Info("📜 Backfilling trade history")

	trades := make([]*model.Trade, 0, len(signatures))
	for i, sig := range signatures {
		if ctx.Err() != nil {
			break
		}

		tx, err := retry.Do(ctx, p.policy, func(ctx context.Context) (*model.Transaction, error) {
			return p.source.Transaction(ctx, sig)
		})
		if err != nil {
			res.Failed++
			p.countFailure()
			logrus.WithFields(logrus.Fields{
				"signature": utils.ShortSig(sig),
				"error":     err.Error(),
			}).Warn("⚠️ Failed to fetch historical transaction")
		} else {
			p.countProcessed()
			if trade, ok := p.inferrer.Infer(tx); ok {
				trades = append(trades, trade)
				p.countTrade(trade)
			} else {
				res.Skipped++
			}
		}

		if (i+1)%p.pauseEvery == 0 && p.pause > 0 {
			p.sleep(ctx, p.pause)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp > trades[j].Timestamp
	})

	if p.sink != nil {
		p.sink.Replace(trades)
	}

	res.Trades = len(trades)
	res.Duration = time.Since(start)
	if p.metrics != nil {
		p.metrics.BackfillDuration.Set(res.Duration.Seconds())
	}

	logrus.WithFields(logrus.Fields{
		"trades":   res.Trades,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
		"duration": res.Duration.Truncate(time.Millisecond),
	}).Info("✅ Backfill complete")

	return trades, res
}

// Signatures pages backwards through the pool's history until n signatures
// are collected or the node returns an empty page. A page that still fails
// after retries ends paging with what was collected so far.
func (p *Pipeline) Signatures(ctx context.Context, n int) []string {
	var (
		out    []string
		before string
	)
	for len(out) < n {
		limit := n - len(out)
		if limit > p.pageSize {
			limit = p.pageSize
		}

		cursor := before
		page, err := retry.Do(ctx, p.policy, func(ctx context.Context) ([]string, error) {
			return p.source.SignaturesForAddress(ctx, p.pool, cursor, limit)
		})
		if err != nil {
			p.countFailure()
			logrus.WithFields(logrus.Fields{
				"before":    utils.ShortSig(cursor),
				"collected": len(out),
				"error":     err.Error(),
			}).Warn("⚠️ Failed to fetch signature page, stopping pagination")
			break
		}
		if len(page) == 0 {
			break
		}

		out = append(out, page...)
		before = page[len(page)-1]

		logrus.WithFields(logrus.Fields{
			"page":      len(page),
			"collected": len(out),
		}).Debug("Fetched signature page")
	}

	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (p *Pipeline) countProcessed() {
	if p.metrics != nil {
		p.metrics.TransactionsProcessed.WithLabelValues(sourceLabel).Inc()
	}
}

func (p *Pipeline) countTrade(trade *model.Trade) {
	if p.metrics != nil {
		p.metrics.TradesInferred.WithLabelValues(sourceLabel, string(trade.Type)).Inc()
	}
}

func (p *Pipeline) countFailure() {
	if p.metrics != nil {
		p.metrics.FetchFailures.WithLabelValues(sourceLabel).Inc()
	}
}

func pauseContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

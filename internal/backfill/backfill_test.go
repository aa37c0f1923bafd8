package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang-pool-streamer/internal/model"
	"golang-pool-streamer/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageCall struct {
	before string
	limit  int
}

// fakeSource serves a fixed newest-first history of signatures "s0".."sN".
type fakeSource struct {
	history   []string
	calls     []pageCall
	pageErr   error
	txErr     map[string]error
	rateLimit map[string]int
}

func newFakeSource(n int) *fakeSource {
	src := &fakeSource{txErr: map[string]error{}, rateLimit: map[string]int{}}
	for i := 0; i < n; i++ {
		src.history = append(src.history, fmt.Sprintf("s%d", i))
	}
	return src
}

func (f *fakeSource) SignaturesForAddress(ctx context.Context, address, before string, limit int) ([]string, error) {
	f.calls = append(f.calls, pageCall{before: before, limit: limit})
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	start := 0
	if before != "" {
		for i, s := range f.history {
			if s == before {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.history) {
		end = len(f.history)
	}
	return append([]string(nil), f.history[start:end]...), nil
}

func (f *fakeSource) Transaction(ctx context.Context, signature string) (*model.Transaction, error) {
	if n := f.rateLimit[signature]; n > 0 {
		f.rateLimit[signature] = n - 1
		return nil, errors.New("429 Too Many Requests")
	}
	if err := f.txErr[signature]; err != nil {
		return nil, err
	}
	return &model.Transaction{Signatures: []string{signature}}, nil
}

// fakeInferrer yields a trade for every signature except those in skip.
// Timestamps are deliberately not in signature order.
type fakeInferrer struct {
	skip map[string]bool
	ts   map[string]int64
}

func (f *fakeInferrer) Infer(tx *model.Transaction) (*model.Trade, bool) {
	sig := tx.Signatures[0]
	if f.skip[sig] {
		return nil, false
	}
	return &model.Trade{Signature: sig, Type: model.TradeSell, Timestamp: f.ts[sig]}, true
}

type fakeSink struct {
	replaced [][]*model.Trade
}

func (f *fakeSink) Replace(trades []*model.Trade) {
	f.replaced = append(f.replaced, trades)
}

func noWaitPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func newTestPipeline(src Source, inf Inferrer, sink Sink, pageSize int) (*Pipeline, *int) {
	pauses := 0
	p := New(Options{
		Source:   src,
		Inferrer: inf,
		Sink:     sink,
		Pool:     "pool",
		Policy:   noWaitPolicy(),
		PageSize: pageSize,
		Pause:    time.Millisecond,
	})
	p.sleep = func(ctx context.Context, d time.Duration) { pauses++ }
	return p, &pauses
}

func TestSignatures_PagesBackwardUntilN(t *testing.T) {
	src := newFakeSource(100)
	p, _ := newTestPipeline(src, &fakeInferrer{}, nil, 30)

	sigs := p.Signatures(context.Background(), 70)

	require.Len(t, sigs, 70)
	assert.Equal(t, "s0", sigs[0])
	assert.Equal(t, "s69", sigs[69])
	assert.Equal(t, []pageCall{
		{before: "", limit: 30},
		{before: "s29", limit: 30},
		{before: "s59", limit: 10},
	}, src.calls)
}

func TestSignatures_StopsOnEmptyPage(t *testing.T) {
	src := newFakeSource(45)
	p, _ := newTestPipeline(src, &fakeInferrer{}, nil, 20)

	sigs := p.Signatures(context.Background(), 1000)

	assert.Len(t, sigs, 45)
	assert.Len(t, src.calls, 4)
	assert.Equal(t, "s44", src.calls[3].before)
}

func TestSignatures_PageFailureEndsPaging(t *testing.T) {
	src := newFakeSource(10)
	src.pageErr = errors.New("connection reset")
	p, _ := newTestPipeline(src, &fakeInferrer{}, nil, 5)

	sigs := p.Signatures(context.Background(), 10)

	assert.Empty(t, sigs)
	assert.Len(t, src.calls, 1, "non rate-limit errors are not retried")
}

func TestRun_SkipsFailuresAndSortsNewestFirst(t *testing.T) {
	src := newFakeSource(6)
	src.txErr["s2"] = errors.New("transaction not found")
	src.rateLimit["s3"] = 2
	inf := &fakeInferrer{
		skip: map[string]bool{"s4": true},
		ts:   map[string]int64{"s0": 500, "s1": 900, "s3": 100, "s5": 700},
	}
	sink := &fakeSink{}
	p, _ := newTestPipeline(src, inf, sink, 1000)

	trades, res := p.Run(context.Background(), 6)

	var got []string
	for _, tr := range trades {
		got = append(got, tr.Signature)
	}
	assert.Equal(t, []string{"s1", "s5", "s0", "s3"}, got)
	assert.Equal(t, 6, res.Signatures)
	assert.Equal(t, 4, res.Trades)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, sink.replaced, 1)
	assert.Equal(t, trades, sink.replaced[0])
}

func TestRun_PausesEvery25(t *testing.T) {
	src := newFakeSource(60)
	p, pauses := newTestPipeline(src, &fakeInferrer{}, nil, 1000)

	_, res := p.Run(context.Background(), 60)

	assert.Equal(t, 60, res.Trades)
	assert.Equal(t, 2, *pauses)
}

func TestRun_EmptyHistoryStillReplaces(t *testing.T) {
	src := newFakeSource(0)
	sink := &fakeSink{}
	p, _ := newTestPipeline(src, &fakeInferrer{}, sink, 1000)

	trades, res := p.Run(context.Background(), 100)

	assert.Empty(t, trades)
	assert.Equal(t, 0, res.Signatures)
	require.Len(t, sink.replaced, 1)
	assert.Empty(t, sink.replaced[0])
}

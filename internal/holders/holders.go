// Package holders counts the token accounts of a mint that hold a non-zero
// balance, caching the last result for a fixed TTL.
package holders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTTL = 10 * time.Minute

// ErrMintNotFound is returned when the mint is not an on-chain account.
var ErrMintNotFound = errors.New("mint account not found")

// Source is the slice of the RPC boundary the aggregator needs.
type Source interface {
	AccountExists(ctx context.Context, address string) (bool, error)
	TokenAccountAmounts(ctx context.Context, mint string) ([]uint64, error)
}

// Stats is the aggregate served to clients. UpdatedAt is unix milliseconds.
type Stats struct {
	Mint                string `json:"mint"`
	HolderCount         int    `json:"holderCount"`
	TotalAccounts       int    `json:"totalAccounts"`
	ZeroBalanceAccounts int    `json:"zeroBalanceAccounts"`
	UpdatedAt           int64  `json:"updatedAt"`
}

// Service holds a single-entry cache keyed by mint. Stale or foreign-key
// requests recompute from scratch; concurrent misses are not coalesced.
type Service struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mutex    sync.RWMutex
	cached   *Stats
	cachedAt time.Time
}

// NewService creates an aggregator over source. ttl <= 0 uses DefaultTTL.
func NewService(source Source, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the holder stats for mint, served from cache while fresh.
func (s *Service) Get(ctx context.Context, mint string) (Stats, error) {
	if stats, ok := s.fresh(mint); ok {
		return stats, nil
	}

	stats, err := s.compute(ctx, mint)
	if err != nil {
		return Stats{}, err
	}

	s.mutex.Lock()
	s.cached = &stats
	s.cachedAt = time.UnixMilli(stats.UpdatedAt)
	s.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"mint":    mint,
		"holders": stats.HolderCount,
		"total":   stats.TotalAccounts,
	}).Info("👥 Holder count refreshed")

	return stats, nil
}

func (s *Service) fresh(mint string) (Stats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.cached == nil || s.cached.Mint != mint {
		return Stats{}, false
	}
	if s.now().Sub(s.cachedAt) >= s.ttl {
		return Stats{}, false
	}
	return *s.cached, true
}

func (s *Service) compute(ctx context.Context, mint string) (Stats, error) {
	exists, err := s.source.AccountExists(ctx, mint)
	if err != nil {
		return Stats{}, fmt.Errorf("lookup mint: %w", err)
	}
	if !exists {
		return Stats{}, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}

	amounts, err := s.source.TokenAccountAmounts(ctx, mint)
	if err != nil {
		return Stats{}, fmt.Errorf("scan token accounts: %w", err)
	}

	stats := Stats{
		Mint:          mint,
		TotalAccounts: len(amounts),
		UpdatedAt:     s.now().UnixMilli(),
	}
	for _, amount := range amounts {
		if amount > 0 {
			stats.HolderCount++
		} else {
			stats.ZeroBalanceAccounts++
		}
	}
	return stats, nil
}

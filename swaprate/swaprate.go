// Package swaprate serves the node's view of market exchange rates and the
// table of asset pairs it is willing to swap.
package swaprate

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
)

var log = logging.Logger("swaprate")

// Oracle fetches the current market rate for one asset pair.
type Oracle interface {
	GetRate(ctx context.Context, from string, to string) (decimal.Decimal, error)
}

type Service struct {
	dao     *dao.Dao
	oracle  Oracle
	allowed []common.AllowedSwap
}

func NewService(d *dao.Dao, oracle Oracle, allowed []common.AllowedSwap) *Service {
	return &Service{
		dao:     d,
		oracle:  oracle,
		allowed: allowed,
	}
}

// ValidSwaps returns the configured allowed (from, to) pairs.
func (s *Service) ValidSwaps() []common.AllowedSwap {
	return s.allowed
}

func (s *Service) SwapAllowed(from string, to string) bool {
	for _, swap := range s.allowed {
		if swap.From == from && swap.To == to {
			return true
		}
	}
	return false
}

// GetOrFetchRate returns the cached rate for (from, to), consulting the
// oracle on a cold cache.
func (s *Service) GetOrFetchRate(ctx context.Context, from string, to string) (decimal.Decimal, error) {
	if rate, ok := s.dao.GetCachedRate(from, to); ok {
		return rate, nil
	}

	rate, err := s.oracle.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, xerrors.Errorf("fetch rate %v->%v: %w", from, to, err)
	}
	if rate.Sign() <= 0 {
		return decimal.Zero, xerrors.Errorf("oracle returned non-positive rate %v for %v->%v", rate, from, to)
	}

	log.Infof("fetched rate %v->%v = %v", from, to, rate)
	s.dao.SetCachedRate(from, to, rate)
	return rate, nil
}

// StaticOracle serves rates from a fixed in-memory table. Used for networks
// without a price feed and in tests.
type StaticOracle struct {
	mu    sync.RWMutex
	rates map[[2]string]decimal.Decimal
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{rates: make(map[[2]string]decimal.Decimal)}
}

func (o *StaticOracle) SetRate(from string, to string, rate decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rates[[2]string{from, to}] = rate
}

func (o *StaticOracle) GetRate(ctx context.Context, from string, to string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rate, ok := o.rates[[2]string{from, to}]
	if !ok {
		return decimal.Zero, xerrors.Errorf("no rate configured for %v->%v", from, to)
	}
	return rate, nil
}

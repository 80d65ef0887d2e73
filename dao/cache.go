package dao

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	RateCacheTimeout time.Duration = 30 * time.Second
)

var swapRateKey = "swap_rate"

func BuildSwapRateKey(from string, to string) string {
	return swapRateKey + ":" + from + ":" + to
}

// GetCachedRate returns the cached market rate for (from, to), or false when
// the cache is cold or expired.
func (d *Dao) GetCachedRate(from string, to string) (decimal.Decimal, bool) {
	val, err := d.rds.Get(d.ctx, BuildSwapRateKey(from, to)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("rate cache read failed: %v", err)
		}
		return decimal.Zero, false
	}

	rate, err := decimal.NewFromString(val)
	if err != nil {
		log.Errorf("bad cached rate %v: %v", val, err)
		return decimal.Zero, false
	}
	return rate, true
}

func (d *Dao) SetCachedRate(from string, to string, rate decimal.Decimal) {
	if err := d.rds.Set(d.ctx, BuildSwapRateKey(from, to), rate.String(), RateCacheTimeout).Err(); err != nil {
		log.Warnf("rate cache write failed: %v", err)
	}
}

// Package lock is a Redis-backed mutual-exclusion primitive serializing
// critical sections across node processes sharing one store. Locks carry a
// fixed TTL so a crashed holder cannot wedge the resource forever.
package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/util"
)

var log = logging.Logger("lock")

const (
	DefaultTTL = 90 * time.Second

	// Contending acquirers wait out the current holder, retrying up to
	// acquireRetries times before giving up.
	acquireRetries    = 10
	acquireRetryDelay = 200 * time.Millisecond

	tokenLen = 32
)

var ErrLockAcquisition = xerrors.New("could not acquire lock")

// releaseScript deletes the key only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Lock is the handle returned by Acquire and required by Release.
type Lock struct {
	Resource   string
	Token      string
	TTL        time.Duration
	AcquiredAt time.Time
}

func (l *Lock) Expired() bool {
	return time.Since(l.AcquiredAt) >= l.TTL
}

// ReleaseError reports a failed release. Expired distinguishes the degraded
// case (ttl already elapsed, lock self-released) from the fatal one (we
// should still own the lock but could not give it back).
type ReleaseError struct {
	Resource string
	Expired  bool
	Err      error
}

func (e *ReleaseError) Error() string {
	if e.Expired {
		return "failed to release lock " + e.Resource + " after ttl expiry: " + e.Err.Error()
	}
	return "failed to release lock " + e.Resource + " within ttl: " + e.Err.Error()
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

type Service struct {
	rds *redis.Client
}

func NewService(rds *redis.Client) *Service {
	return &Service{rds: rds}
}

// Acquire takes the named lock. A held lock is retried until the holder
// releases or the retry budget runs out, so contending callers queue behind
// the holder instead of failing outright.
func (s *Service) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	token := util.RandHexStr(tokenLen)

	for attempt := 0; ; attempt++ {
		ok, err := s.rds.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return nil, xerrors.Errorf("lock %v: %w", name, err)
		}
		if ok {
			break
		}
		if attempt >= acquireRetries {
			return nil, xerrors.Errorf("lock %v is held: %w", name, ErrLockAcquisition)
		}

		select {
		case <-time.After(acquireRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log.Debugf("acquired lock %v token %v", name, token)
	return &Lock{
		Resource:   name,
		Token:      token,
		TTL:        ttl,
		AcquiredAt: time.Now(),
	}, nil
}

// Release gives the lock back. Only the holder's token can release it.
func (s *Service) Release(ctx context.Context, l *Lock) error {
	n, err := releaseScript.Run(ctx, s.rds, []string{l.Resource}, l.Token).Int()
	if err == nil && n == 0 {
		err = xerrors.Errorf("lock %v no longer owned by token %v", l.Resource, l.Token)
	}
	if err != nil {
		return &ReleaseError{Resource: l.Resource, Expired: l.Expired(), Err: err}
	}

	log.Debugf("released lock %v", l.Resource)
	return nil
}

// WithLock runs fn while holding the named lock, releasing it on every path.
//
// A failed release after the ttl has elapsed is degraded but not fatal: fn's
// outcome is preserved and the ReleaseError is surfaced only when fn itself
// succeeded, so the caller observes both. A failed release while the ttl has
// not elapsed means the lock is held past its ownership window and always
// propagates as an error.
func (s *Service) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l, err := s.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}

	fnErr := fn(ctx)

	if relErr := s.Release(ctx, l); relErr != nil {
		re := relErr.(*ReleaseError)
		if !re.Expired {
			log.Errorf("releasing %v: %v", name, relErr)
			return relErr
		}
		log.Warnf("releasing %v after expiry: %v", name, relErr)
		if fnErr != nil {
			return fnErr
		}
		return relErr
	}

	return fnErr
}

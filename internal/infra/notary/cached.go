package notary

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"truthcert/internal/domain"
)

const defaultSharedTimeout = 10 * time.Second

// Cached wraps a lookup with a TTL cache of successful results. Concurrent
// lookups of the same id share one upstream call. Failures are never cached.
//
// The shared call is detached from every caller's cancellation and bounded by
// its own timeout instead. Each caller waits on its own context, so one caller
// giving up never fails the others.
type Cached struct {
	next    domain.NotarizationLookup
	cache   *gocache.Cache
	sf      singleflight.Group
	timeout time.Duration
}

func NewCached(next domain.NotarizationLookup, ttl, timeout time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = defaultSharedTimeout
	}
	return &Cached{
		next:    next,
		cache:   gocache.New(ttl, time.Minute),
		timeout: timeout,
	}
}

func (c *Cached) Lookup(ctx context.Context, notarizationID string) (domain.NotarizationRecord, error) {
	if v, ok := c.cache.Get(notarizationID); ok {
		return copyRecord(v.(domain.NotarizationRecord)), nil
	}
	ch := c.sf.DoChan(notarizationID, func() (any, error) {
		if v, ok := c.cache.Get(notarizationID); ok {
			return v, nil
		}
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		rec, err := c.next.Lookup(callCtx, notarizationID)
		if err != nil {
			return nil, lookupError(callCtx, err)
		}
		c.cache.SetDefault(notarizationID, rec)
		return rec, nil
	})
	select {
	case <-ctx.Done():
		return domain.NotarizationRecord{}, lookupError(ctx, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.NotarizationRecord{}, res.Err
		}
		return copyRecord(res.Val.(domain.NotarizationRecord)), nil
	}
}

// lookupError keeps errors that already carry a lookup kind and classifies
// the rest as a timeout or a failure.
func lookupError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrLookupTimeout),
		errors.Is(err, domain.ErrLookupFailure):
		return err
	}
	return classify(ctx, err)
}

func copyRecord(rec domain.NotarizationRecord) domain.NotarizationRecord {
	rec.Jurisdictions = append([]string(nil), rec.Jurisdictions...)
	return rec
}

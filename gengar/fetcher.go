package gengar

import (
	"context"
	"fmt"
	"time"

	"cgmev/gengar/pkg/dexcom"
	"cgmev/gengar/pkg/mg"

	"go.uber.org/zap"
)

type FetcherStore interface {
	mg.GlucoseStore
}

type Fetcher struct {
	Source dexcom.Source
	Store  FetcherStore

	// Interval is the sampling grid reading times are rounded onto.
	Interval time.Duration
	Logger   *zap.Logger
}

// FetchAndLoad stores the latest readings, newest first, and stops at the
// first reading that is already stored. It returns how many were new.
func (f *Fetcher) FetchAndLoad(ctx context.Context) (int, error) {
	rs, err := f.Source.Readings(ctx, dexcom.MinuteLimit, dexcom.CountLimit)
	if err != nil {
		return 0, fmt.Errorf("unable to fetch readings: %w", err)
	}

	var n int
	for _, r := range rs {
		if f.Interval > 0 {
			r.Time = r.Time.Round(f.Interval)
		}
		res, err := f.Store.WriteGlucose(ctx, r)
		if err != nil {
			return n, fmt.Errorf("unable to write glucose to store: %w", err)
		}
		if res.MatchedCount > 0 {
			break
		}
		n++
	}

	f.Logger.Debug("loaded readings", zap.Int("new", n), zap.Int("fetched", len(rs)))
	return n, nil
}

package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent GC pause exceeded threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// ErrNotLoaded is reported by FreshnessCheck before the first load.
var ErrNotLoaded = errors.New("not loaded yet")

// FreshnessCheck fails until loadedAt reports a load, and when the last load
// is older than maxAge. A zero maxAge only requires a load.
func FreshnessCheck(loadedAt func() (time.Time, bool), maxAge time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(context.Context) error {
		at, ok := loadedAt()
		if !ok {
			return ErrNotLoaded
		}
		if age := now().Sub(at); maxAge > 0 && age > maxAge {
			return errors.Errorf("last load %s ago exceeds %s", age.Truncate(time.Second), maxAge)
		}
		return nil
	}
}

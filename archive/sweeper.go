package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// Sweeper periodically removes archives older than the retention window
type Sweeper struct {
	Store     *Store
	Retention time.Duration
	Interval  time.Duration
}

// NewSweeper creates a sweeper for the store
func NewSweeper(store *Store, retention time.Duration, interval time.Duration) *Sweeper {
	return &Sweeper{Store: store, Retention: retention, Interval: interval}
}

// SweepOnTicker sweeps once immediately and then on every tick until the
// context is done. It logs failures and keeps going.
//Note: this is blocking
func (sw *Sweeper) SweepOnTicker(ctx context.Context) {
	util.LogInfo(sw.Store.LogContext, fmt.Sprintf("Archive sweeper started: retention %v, interval %v", sw.Retention, sw.Interval))
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()
	for {
		if _, err := sw.Store.Sweep(ctx, sw.Retention); err != nil && ctx.Err() == nil {
			util.LogAlert(sw.Store.LogContext, "Failed to sweep expired archives: "+err.Error())
		}
		select {
		case <-ctx.Done():
			util.LogInfo(sw.Store.LogContext, "Archive sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

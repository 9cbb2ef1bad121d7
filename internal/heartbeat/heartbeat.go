// Package heartbeat reports elapsed time on a fixed interval while a batch
// runs.
package heartbeat

import (
	"context"
	"sync"
	"time"
)

// Handle controls a running heartbeat.
type Handle struct {
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	total  time.Duration
}

// Start calls report with the elapsed time every interval until ctx is
// done or Stop is called. A non-positive interval starts no ticker; the
// handle still measures elapsed time.
func Start(ctx context.Context, interval time.Duration, report func(elapsed time.Duration)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		start:  time.Now(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if interval <= 0 || report == nil {
		close(h.done)
		return h
	}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(time.Since(h.start))
			}
		}
	}()
	return h
}

// Stop ends the heartbeat, waits for its goroutine and returns the total
// elapsed time. Later calls return the same value.
func (h *Handle) Stop() time.Duration {
	h.once.Do(func() {
		h.cancel()
		<-h.done
		h.total = time.Since(h.start)
	})
	return h.total
}

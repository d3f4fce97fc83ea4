package sse

import (
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
)

// DefaultKeepAliveInterval keeps intermediaries from timing out idle
// streams. 10 seconds is safe for common proxy defaults.
const DefaultKeepAliveInterval = 10 * time.Second

// KeepAlive sends periodic comment pings on a stream while a long
// upstream operation runs. It stops on its own when a write fails,
// which is how a dropped client connection surfaces.
type KeepAlive struct {
	interval time.Duration
	done     chan struct{}
	wg       conc.WaitGroup
}

func NewKeepAlive(interval time.Duration) *KeepAlive {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	return &KeepAlive{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the ping loop. Stopped returns a channel that closes
// when the loop exits, either from Stop or from a failed write.
func (k *KeepAlive) Start(stream *Stream, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})

	k.wg.Go(func() {
		defer close(stopped)

		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := stream.Comment("keepalive"); err != nil {
					logger.Debug("keep-alive write failed, client likely gone", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	})

	return stopped
}

// Stop terminates the ping loop and waits for it to exit.
// Safe to call multiple times.
func (k *KeepAlive) Stop() {
	select {
	case <-k.done:
	default:
		close(k.done)
	}
	k.wg.Wait()
}

package session

import (
	"sync"
	"time"
)

// countdown is a cancellable logout countdown. fire runs at most once no
// matter how the countdown ends: natural expiry, early user dismissal, or
// an explicit cancel racing the final tick.
type countdown struct {
	stop chan struct{}
	once sync.Once
}

func newCountdown() *countdown {
	return &countdown{stop: make(chan struct{})}
}

// fire invalidates the countdown and runs f exactly once.
func (cd *countdown) fire(f func()) {
	cd.once.Do(func() {
		close(cd.stop)
		f()
	})
}

// cancel invalidates the countdown without running anything further.
func (cd *countdown) cancel() {
	cd.once.Do(func() {
		close(cd.stop)
	})
}

// run drives the tick loop: render each remaining second, then the final
// render, then after finalDelay invoke done. Returns immediately; the loop
// lives on its own goroutine.
func (cd *countdown) run(ticks int, tick time.Duration, finalDelay time.Duration, render func(remaining int), final func(), done func()) {
	render(ticks)
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		remaining := ticks
		for {
			select {
			case <-cd.stop:
				return
			case <-ticker.C:
				remaining--
				if remaining > 0 {
					render(remaining)
					continue
				}
				final()
				select {
				case <-cd.stop:
				case <-time.After(finalDelay):
					cd.fire(done)
				}
				return
			}
		}
	}()
}

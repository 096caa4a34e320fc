// Package clock provides the time source and cancellable scheduled tasks used
// by the session monitor. Production code uses Real(); tests use a Fake and
// advance it by hand.
package clock

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled callback. Stop is idempotent and a stopped
// task never fires again.
type Task interface {
	Stop()
}

// Clock is a time source that can schedule callbacks.
type Clock interface {
	Now() time.Time
	// Every runs fn every d until the returned task is stopped.
	Every(d time.Duration, fn func()) Task
	// After runs fn once after d unless the returned task is stopped first.
	After(d time.Duration, fn func()) Task
}

type realClock struct{}

// Real returns a Clock backed by the runtime timers.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				// A Stop racing with the tick must win.
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

func (realClock) After(d time.Duration, fn func()) Task {
	return timerTask{time.AfterFunc(d, fn)}
}

type tickerTask struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.done) })
}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Stop() { t.timer.Stop() }

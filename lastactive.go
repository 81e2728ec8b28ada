package authcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type lastActiveTouch struct {
	userID string
	at     int64
}

// lastActiveToucher refreshes the directory's last-active timestamp off
// the request path. Touches are best effort: a full buffer drops them.
type lastActiveToucher struct {
	users     UserDirectory
	ch        chan lastActiveTouch
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

func newLastActiveToucher(users UserDirectory, buffer int) *lastActiveToucher {
	if users == nil {
		return nil
	}
	if buffer <= 0 {
		buffer = 256
	}

	t := &lastActiveToucher{
		users: users,
		ch:    make(chan lastActiveTouch, buffer),
		done:  make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *lastActiveToucher) run() {
	defer t.wg.Done()

	for {
		select {
		case touch := <-t.ch:
			t.apply(touch)
		case <-t.done:
			for {
				select {
				case touch := <-t.ch:
					t.apply(touch)
				default:
					return
				}
			}
		}
	}
}

func (t *lastActiveToucher) apply(touch lastActiveTouch) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = t.users.TouchLastActive(ctx, touch.userID, touch.at)
}

// Touch enqueues a refresh without blocking the caller.
func (t *lastActiveToucher) Touch(userID string) {
	if t == nil {
		return
	}
	select {
	case t.ch <- lastActiveTouch{userID: userID, at: time.Now().Unix()}:
	case <-t.done:
	default:
		t.dropped.Add(1)
	}
}

// Close stops the worker after draining queued touches.
func (t *lastActiveToucher) Close() {
	if t == nil {
		return
	}
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
}

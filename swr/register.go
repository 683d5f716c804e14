package swr

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-swr-cache/cache"
	"github.com/goliatone/go-swr-cache/internal/coordination"
)

// Register attaches a consumer to the key: the consumer is revalidated on
// focus and reconnect events (as configured), on committed mutations for the
// key, and optionally on a polling interval. It returns the release function
// that detaches the consumer and stops its polling loop.
//
// Releasing a consumer stops its callbacks and triggers, but never aborts a
// fetch other consumers are sharing through deduplication. The cache entry
// itself outlives all consumers.
func (e *Engine) Register(key cache.Key, opts ...RegisterOption) (func(), error) {
	skey, _ := e.ser.Serialize(key)
	if skey == "" {
		return nil, ErrNoKey
	}

	o := e.newRegisterOptions(opts)
	c := &consumer{
		engine:            e,
		key:               key,
		focus:             o.focus,
		reconnect:         o.reconnect,
		refreshWhenHidden: o.refreshWhenHidden,
		refreshWhenOff:    o.refreshWhenOff,
	}

	detach := e.rec.AttachRevalidator(skey, c.onEvent)

	stop := make(chan struct{})
	if o.refreshInterval > 0 {
		go c.poll(o.refreshInterval, stop)
	}
	if o.initial {
		go e.Revalidate(context.Background(), key)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			detach()
			close(stop)
		})
	}
	return release, nil
}

// consumer is one registered participant for a key, holding its per-consumer
// trigger settings and focus throttle state.
type consumer struct {
	engine            *Engine
	key               cache.Key
	focus             bool
	reconnect         bool
	refreshWhenHidden bool
	refreshWhenOff    bool

	mu        sync.Mutex
	lastFocus time.Time
}

func (c *consumer) onEvent(reason coordination.Reason) {
	switch reason {
	case coordination.ReasonFocus:
		if !c.focus || !c.admitFocus() {
			return
		}
	case coordination.ReasonReconnect:
		if !c.reconnect {
			return
		}
	case coordination.ReasonMutate:
		// Always propagate committed mutations.
	default:
		return
	}
	go c.engine.Revalidate(context.Background(), c.key)
}

// admitFocus throttles focus-triggered revalidations per consumer.
func (c *consumer) admitFocus() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if !c.lastFocus.IsZero() && now.Sub(c.lastFocus) < c.engine.cfg.FocusThrottleInterval {
		return false
	}
	c.lastFocus = now
	return true
}

// poll revalidates the key on a fixed interval until released, pausing while
// the consumer is hidden or offline unless configured otherwise.
func (c *consumer) poll(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !c.engine.cfg.IsVisible() && !c.refreshWhenHidden {
				continue
			}
			if !c.engine.cfg.IsOnline() && !c.refreshWhenOff {
				continue
			}
			c.engine.Revalidate(context.Background(), c.key)
		case <-stop:
			return
		}
	}
}

package wechaty

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wechaty-go/wechaty/puppet"
)

// accessory is the part every handle shares: its identity and the session
// it belongs to.
type accessory struct {
	wechaty *Wechaty
	id      string
}

// ID returns the puppet-assigned id. It never changes.
func (a *accessory) ID() string { return a.id }

// ============================================================================
// Payload cache
// ============================================================================

// payloadCache holds the current payload of one handle. The payload pointer
// is replaced on refresh and never written through.
//
// gen counts invalidations; a fetch that started before the latest
// invalidation stores its result but leaves the cache dirty.
type payloadCache[P any] struct {
	mu      sync.RWMutex
	payload *P
	dirty   bool
	gen     uint64
	flight  singleflight.Group
}

func (c *payloadCache[P]) get() *P {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.payload
}

func (c *payloadCache[P]) needsFetch() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.payload == nil || c.dirty
}

func (c *payloadCache[P]) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *payloadCache[P]) store(p *P, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = p
	c.dirty = c.gen != gen
}

func (c *payloadCache[P]) markDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.payload != nil {
		c.dirty = true
	}
}

// ============================================================================
// Ready
// ============================================================================

// readyPayload brings cache up to date. Without force a clean cached payload
// is returned as is. With force the puppet-side cache is invalidated first;
// a failed invalidation is logged and the fetch still happens. Concurrent
// callers share one fetch. On failure the previous payload stays in place.
func readyPayload[P any](
	ctx context.Context,
	a *accessory,
	kind puppet.PayloadType,
	cache *payloadCache[P],
	force bool,
	fetch func(context.Context) (*P, error),
) error {
	if !force && !cache.needsFetch() {
		return nil
	}

	key := "ready"
	if force {
		key = "sync"
	}
	_, err, _ := cache.flight.Do(key, func() (any, error) {
		gen := cache.generation()
		if force {
			if err := a.wechaty.puppet.DirtyPayload(ctx, kind, a.id); err != nil {
				a.wechaty.logger.Warn("wechaty: dirty payload failed, refetching anyway",
					"kind", kind,
					"id", a.id,
					"error", err,
				)
			}
		}
		p, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		cache.store(p, gen)
		return nil, nil
	})
	if err != nil {
		var remote *RemoteError
		if !errors.As(err, &remote) {
			err = &RemoteError{Op: payloadOp(kind), Kind: kind, ID: a.id, Err: err}
		}
		a.wechaty.logger.Error("wechaty: ready failed",
			"kind", kind,
			"id", a.id,
			"force", force,
			"error", err,
		)
		return err
	}
	return nil
}

func payloadOp(kind puppet.PayloadType) string {
	switch kind {
	case puppet.PayloadContact:
		return "ContactPayload"
	case puppet.PayloadRoom:
		return "RoomPayload"
	case puppet.PayloadMessage:
		return "MessagePayload"
	default:
		return string(kind) + "Payload"
	}
}

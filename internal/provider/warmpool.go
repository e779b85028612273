package provider

import (
	"context"
	"sync"
)

// Dialer produces a fresh Provider handle on demand.
type Dialer func(ctx context.Context) (Provider, error)

// WarmPool keeps a small number of pre-dialed Provider handles ready so
// WindowTaskProcessor and TaskDispatcher can satisfy "a provider from the
// warm pool" without paying connection-setup latency on the hot path.
//
// A handle leased via Lease is returned to the pool on Release unless it
// reports itself unhealthy, in which case it is discarded and a fresh one
// is dialed to refill the pool.
type WarmPool struct {
	dial     Dialer
	lowWater int

	mu      sync.Mutex
	ready   chan Provider
	closed  bool
}

// NewWarmPool builds a pool of the given size, dialed lazily as Fill is
// called.
func NewWarmPool(dial Dialer, size int) *WarmPool {
	return &WarmPool{dial: dial, lowWater: size / 2, ready: make(chan Provider, size)}
}

// Fill dials handles until the pool is at capacity.
func (p *WarmPool) Fill(ctx context.Context) error {
	for len(p.ready) < cap(p.ready) {
		h, err := p.dial(ctx)
		if err != nil {
			return err
		}
		select {
		case p.ready <- h:
		default:
			h.Dispose()
			return nil
		}
	}
	return nil
}

// Lease returns a ready handle, dialing one on demand if the pool is
// currently empty.
func (p *WarmPool) Lease(ctx context.Context) (Provider, error) {
	select {
	case h := <-p.ready:
		if len(p.ready) < p.lowWater {
			go p.Fill(context.Background())
		}
		return h, nil
	default:
		return p.dial(ctx)
	}
}

// Release returns a leased handle to the pool, or discards it (dialing a
// replacement) if healthy reports false.
func (p *WarmPool) Release(ctx context.Context, h Provider, healthy bool) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		h.Dispose()
		return
	}
	if !healthy {
		h.Dispose()
		go p.Fill(context.Background())
		return
	}
	select {
	case p.ready <- h:
	default:
		h.Dispose()
	}
}

// Close disposes every pooled handle.
func (p *WarmPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	close(p.ready)
	for h := range p.ready {
		h.Dispose()
	}
}

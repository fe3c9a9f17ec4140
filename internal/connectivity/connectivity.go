// Package connectivity answers "is the remote reachable right now". The sync
// driver consults it once per drain.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Checker interface {
	IsConnected(ctx context.Context) bool
}

// Func adapts a plain function to Checker.
type Func func(ctx context.Context) bool

func (f Func) IsConnected(ctx context.Context) bool { return f(ctx) }

// Static reports a fixed state that can be flipped at runtime.
type Static struct {
	online atomic.Bool
}

func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

func (s *Static) Set(online bool) { s.online.Store(online) }

func (s *Static) IsConnected(context.Context) bool { return s.online.Load() }

// Offline is a Checker that is never connected; used when no remote is
// configured.
var Offline Checker = Func(func(context.Context) bool { return false })

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker is connected when a Ping completes within Timeout.
type PingChecker struct {
	Target  Pinger
	Timeout time.Duration
}

func NewPingChecker(target Pinger, timeout time.Duration) *PingChecker {
	return &PingChecker{Target: target, Timeout: timeout}
}

func (c *PingChecker) IsConnected(ctx context.Context) bool {
	if c.Target == nil {
		return false
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return c.Target.Ping(ctx) == nil
}

// Opener is a Pinger that has to be opened before it can answer.
type Opener interface {
	Pinger
	Open(ctx context.Context) error
}

// OpenChecker opens its target on demand. Every check retries Open until one
// succeeds; from then on a check is a plain ping.
type OpenChecker struct {
	target  Opener
	timeout time.Duration
	onError func(error)

	mu     sync.Mutex
	opened bool
	ping   *PingChecker
}

// NewOpenChecker builds a checker over target. onError, when set, receives
// every failed Open.
func NewOpenChecker(target Opener, timeout time.Duration, onError func(error)) *OpenChecker {
	return &OpenChecker{
		target:  target,
		timeout: timeout,
		onError: onError,
		ping:    NewPingChecker(target, timeout),
	}
}

func (c *OpenChecker) IsConnected(ctx context.Context) bool {
	if c.target == nil {
		return false
	}
	if !c.open(ctx) {
		return false
	}
	return c.ping.IsConnected(ctx)
}

// Opened reports whether an Open has succeeded.
func (c *OpenChecker) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *OpenChecker) open(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return true
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.target.Open(ctx); err != nil {
		if c.onError != nil {
			c.onError(err)
		}
		return false
	}
	c.opened = true
	return true
}

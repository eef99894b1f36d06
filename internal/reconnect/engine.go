// Package reconnect implements the reconnect & state-restoration
// engine (spec.md §4.5), redesigned per spec.md §9 to hold only
// downward references: the registry and config managers publish a
// restorable closure into the engine for each node they register and
// each subscription or watch they create, and the engine
// never holds a back-pointer to them. This breaks the cyclic
// ownership the original design had, the same redesign spec.md's
// Open Questions call for.
package reconnect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fluxsce/flux-service-center-client/internal/transport"
)

// Restorer re-establishes one piece of server-side state (registered
// nodes, subscriptions, watches) after a reconnect. It must be
// idempotent: the engine calls it again after every successful
// reconnect. A restorer that fails is logged and not retried until the
// next reconnect.
type Restorer func(ctx context.Context) error

// Trigger identifies why a reconnect was requested, for logging only.
type Trigger string

const (
	TriggerStreamError      Trigger = "stream_error"
	TriggerChannelUnhealthy Trigger = "channel_unhealthy"
	TriggerHeartbeatFailure Trigger = "heartbeat_failure"
	TriggerExplicit         Trigger = "explicit"
)

// Engine owns the backoff loop that calls Reconnect and then runs
// every registered Restorer. It holds no reference back to whatever
// published those restorers.
type Engine struct {
	logger      *zap.Logger
	initial     time.Duration
	max         time.Duration
	maxAttempts int // negative means infinite, per spec.md §6's maxReconnectAttempts

	// Reconnect re-establishes the underlying transport. It must
	// return nil only once the channel is usable again.
	Reconnect func(ctx context.Context) error

	// OnExhausted is invoked once maxAttempts consecutive attempts have
	// all failed. It should transition the session to its terminal
	// FAILED state; the Engine holds no reference to the session itself
	// (spec.md §9 downward-only ownership), so the caller supplies this
	// as a closure the same way it supplies Reconnect.
	OnExhausted func()

	mu        sync.Mutex
	restorers map[string]Restorer

	errMu   sync.Mutex
	lastErr error

	triggerCh chan Trigger
	closeOnce sync.Once
	done      chan struct{}
}

// New constructs an Engine. reconnect is called to re-establish the
// transport each attempt; initial/max bound the doubling backoff
// between attempts; maxAttempts caps consecutive failures before
// giving up (negative means retry forever).
func New(logger *zap.Logger, reconnect func(ctx context.Context) error, initial, max time.Duration, maxAttempts int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:      logger,
		initial:     initial,
		max:         max,
		maxAttempts: maxAttempts,
		Reconnect:   reconnect,
		restorers:   make(map[string]Restorer),
		triggerCh:   make(chan Trigger, 1),
		done:        make(chan struct{}),
	}
}

// LastError returns the error from the most recent failed reconnect
// attempt, or nil if the last attempt (or no attempt yet) succeeded.
// This is the client's getLastError() per spec.md §7.
func (e *Engine) LastError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

func (e *Engine) setLastError(err error) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
}

// Register publishes a restorer under a stable key (e.g. a
// subscription id). A later Register under the same key replaces it;
// Unregister removes it once the caller no longer needs it restored.
func (e *Engine) Register(key string, restorer Restorer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restorers[key] = restorer
}

// Unregister removes a previously published restorer.
func (e *Engine) Unregister(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.restorers, key)
}

// Trigger requests a reconnect attempt. It is non-blocking: a
// already-pending trigger absorbs duplicate requests, matching
// spec.md's "duplicate-subscription suppression before retry" note —
// generalized here to duplicate reconnect requests.
func (e *Engine) Trigger(reason Trigger) {
	select {
	case e.triggerCh <- reason:
	default:
	}
	e.logger.Debug("reconnect triggered", zap.String("reason", string(reason)))
}

// Run processes trigger requests until ctx is cancelled or Close is
// called. Each trigger runs the backoff loop: call Reconnect, and once
// it succeeds, run every registered restorer, logging but not aborting
// on a restorer's failure (a partial restore is better than none).
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case reason := <-e.triggerCh:
			e.runOnce(ctx, reason)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context, reason Trigger) {
	backoff := transport.NewBackoff(e.initial, e.max)
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		default:
		}

		attempt++
		delay := backoff.Next()
		e.logger.Info("reconnect attempt", zap.String("reason", string(reason)), zap.Int("attempt", attempt), zap.Duration("backoff", delay))
		if err := e.Reconnect(ctx); err != nil {
			e.setLastError(err)
			e.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))

			if e.maxAttempts >= 0 && attempt >= e.maxAttempts {
				e.logger.Error("reconnect attempts exhausted", zap.Int("attempts", attempt))
				if e.OnExhausted != nil {
					e.OnExhausted()
				}
				return
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-e.done:
				return
			}
			continue
		}

		backoff.Reset()
		e.setLastError(nil)
		e.restoreAll(ctx)
		return
	}
}

func (e *Engine) restoreAll(ctx context.Context) {
	e.mu.Lock()
	restorers := make(map[string]Restorer, len(e.restorers))
	for k, v := range e.restorers {
		restorers[k] = v
	}
	e.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for key, restorer := range restorers {
		key, restorer := key, restorer
		group.Go(func() error {
			if err := restorer(gctx); err != nil {
				e.logger.Warn("restore failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
}

// Close stops Run and releases the engine. It does not close any
// underlying transport.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

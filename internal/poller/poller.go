// Package poller periodically reloads the task list while someone is looking
// at it and has recently interacted with it.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"todosync/internal/logging"
	"todosync/internal/reconciler"
)

const (
	// DefaultInterval is used when no interval option is given.
	DefaultInterval = 3 * time.Second

	// DefaultActivityWindow is how recent the last interaction must be for a
	// tick to reload.
	DefaultActivityWindow = 30 * time.Second
)

// Loader is the reload target; *reconciler.Reconciler satisfies it.
type Loader interface {
	Load(ctx context.Context) reconciler.LoadResult
}

// Poller drives Loader.Load from a single ticker.
type Poller struct {
	loader   Loader
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *log.Logger

	mu           sync.Mutex
	visible      bool
	lastActivity time.Time
	cancel       context.CancelFunc
	done         chan struct{}

	wake    chan struct{}
	loading atomic.Bool
	loads   sync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithActivityWindow sets the activity window. Non-positive values are ignored.
func WithActivityWindow(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Poller. It starts visible, with activity recorded now.
func New(loader Loader, opts ...Option) *Poller {
	p := &Poller{
		loader:   loader,
		interval: DefaultInterval,
		window:   DefaultActivityWindow,
		now:      time.Now,
		logger:   logging.Discard(),
		visible:  true,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastActivity = p.now()
	return p
}

// Interval returns the tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start launches the ticker goroutine. It is a no-op while already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.logger.Debug("poller started", "interval", p.interval, "window", p.window)
}

// Stop tears down the ticker and waits for a running load to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.loads.Wait()
	p.logger.Debug("poller stopped")
}

// Running reports whether the ticker goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// SetVisible pauses (false) or resumes (true) ticking.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	p.visible = visible
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Visible reports the current visibility.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Touch records user activity.
func (p *Poller) Touch() {
	p.mu.Lock()
	p.lastActivity = p.now()
	p.mu.Unlock()
}

// LastActivity returns when Touch was last called.
func (p *Poller) LastActivity() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastActivity
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	visible := p.Visible()
	if !visible {
		ticker.Stop()
	}
	loadCtx := context.WithoutCancel(ctx)

	for {
		var tick <-chan time.Time
		if visible {
			tick = ticker.C
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			now := p.Visible()
			if now == visible {
				continue
			}
			visible = now
			if visible {
				ticker.Reset(p.interval)
				p.logger.Debug("poller resumed")
			} else {
				ticker.Stop()
				p.logger.Debug("poller paused")
			}
		case <-tick:
			p.tick(loadCtx)
		}
	}
}

// tick starts a load unless the user has been idle for the whole window or
// the previous load is still running. It reports whether a load started.
func (p *Poller) tick(ctx context.Context) bool {
	p.mu.Lock()
	idle := p.now().Sub(p.lastActivity)
	p.mu.Unlock()

	if idle >= p.window {
		p.logger.Debug("skipping refresh, no recent activity", "idle", idle.Round(time.Second))
		return false
	}
	if !p.loading.CompareAndSwap(false, true) {
		p.logger.Debug("skipping refresh, previous load still running")
		return false
	}

	p.loads.Add(1)
	go func() {
		defer p.loads.Done()
		defer p.loading.Store(false)

		res := p.loader.Load(ctx)
		p.logger.Debug("refreshed", "source", res.Source, "count", res.Count, "unreachable", res.Unreachable)
	}()
	return true
}

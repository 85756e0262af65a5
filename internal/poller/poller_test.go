package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/reconciler"
)

type countingLoader struct {
	calls atomic.Int32
	block chan struct{}
}

func (l *countingLoader) Load(ctx context.Context) reconciler.LoadResult {
	l.calls.Add(1)
	if l.block != nil {
		<-l.block
	}
	return reconciler.LoadResult{Source: reconciler.SourceRemote}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestTick_FiresWithinActivityWindow(t *testing.T) {
	clock := newClock()
	loader := &countingLoader{}
	p := New(loader, WithClock(clock.Now))

	clock.Advance(29 * time.Second)
	require.True(t, p.tick(context.Background()))
	p.loads.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestTick_SkipsWhenIdle(t *testing.T) {
	clock := newClock()
	loader := &countingLoader{}
	p := New(loader, WithClock(clock.Now))

	clock.Advance(30 * time.Second)
	assert.False(t, p.tick(context.Background()))
	assert.EqualValues(t, 0, loader.calls.Load())

	p.Touch()
	assert.True(t, p.tick(context.Background()))
	p.loads.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestTick_CustomWindow(t *testing.T) {
	clock := newClock()
	p := New(&countingLoader{}, WithClock(clock.Now), WithActivityWindow(5*time.Second))

	clock.Advance(6 * time.Second)
	assert.False(t, p.tick(context.Background()))
}

func TestTick_SkipsWhileLoading(t *testing.T) {
	loader := &countingLoader{block: make(chan struct{})}
	p := New(loader)

	require.True(t, p.tick(context.Background()))
	assert.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, p.tick(context.Background()), "overlapping load must be skipped")

	close(loader.block)
	p.loads.Wait()
	assert.True(t, p.tick(context.Background()))
	p.loads.Wait()
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestTouch(t *testing.T) {
	clock := newClock()
	p := New(&countingLoader{}, WithClock(clock.Now))

	clock.Advance(time.Minute)
	p.Touch()
	assert.Equal(t, clock.Now(), p.LastActivity())
}

func TestStartStop(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, WithInterval(5*time.Millisecond))

	p.Start(context.Background())
	p.Start(context.Background())
	assert.Eventually(t, func() bool { return loader.calls.Load() >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	stopped := loader.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, loader.calls.Load(), "no ticker may survive Stop")

	// Stop is idempotent and the poller can be restarted.
	p.Stop()
	p.Start(context.Background())
	assert.Eventually(t, func() bool { return loader.calls.Load() > stopped }, time.Second, time.Millisecond)
	p.Stop()
}

func TestRunning(t *testing.T) {
	p := New(&countingLoader{}, WithInterval(time.Hour))
	assert.False(t, p.Running())

	p.Start(context.Background())
	assert.True(t, p.Running())

	p.Stop()
	assert.False(t, p.Running())
}

func TestStopOnContextCancel(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop hung after context cancel")
	}
}

func TestSetVisible(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, WithInterval(5*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return loader.calls.Load() >= 1 }, time.Second, time.Millisecond)

	p.SetVisible(false)
	assert.False(t, p.Visible())
	time.Sleep(20 * time.Millisecond)
	paused := loader.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, loader.calls.Load(), "hidden poller must not tick")

	p.SetVisible(true)
	assert.Eventually(t, func() bool { return loader.calls.Load() > paused }, time.Second, time.Millisecond)
}

func TestStartHidden(t *testing.T) {
	loader := &countingLoader{}
	p := New(loader, WithInterval(5*time.Millisecond))
	p.SetVisible(false)
	p.Start(context.Background())
	defer p.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 0, loader.calls.Load())
}

func TestDefaults(t *testing.T) {
	p := New(&countingLoader{}, WithInterval(0), WithActivityWindow(-1))
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.Equal(t, DefaultActivityWindow, p.window)
	assert.True(t, p.Visible())
}

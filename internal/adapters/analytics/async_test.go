package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// gatedTracker blocks every delivery until release is closed.
type gatedTracker struct {
	release chan struct{}
	mu      sync.Mutex
	names   []string
}

func (g *gatedTracker) Track(_ context.Context, e Event) {
	<-g.release
	g.mu.Lock()
	g.names = append(g.names, e.Name)
	g.mu.Unlock()
}

func (g *gatedTracker) tracked() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.names...)
}

func TestAsync_TrackDoesNotWaitForProvider(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	slow := &gatedTracker{release: make(chan struct{})}
	a := NewAsync(slow, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	returned := make(chan struct{})
	go func() {
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			a.Track(context.Background(), Event{Name: name})
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on a slow provider")
	}
	assert.Positive(t, a.Dropped(), "a full queue drops instead of blocking")

	close(slow.release)
	cancel()
	assert.NoError(t, <-done)
	assert.Len(t, slow.tracked(), int(5-a.Dropped()))
}

func TestAsync_RunDrainsQueueOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := &gatedTracker{release: make(chan struct{})}
	close(sink.release)
	a := NewAsync(sink, 0)
	for _, name := range []string{EventCarRequestSubmitted, EventOfferAccepted, EventCalculatorUsed} {
		a.Track(context.Background(), Event{Name: name})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
	assert.ElementsMatch(t, []string{EventCarRequestSubmitted, EventOfferAccepted, EventCalculatorUsed}, sink.tracked())
	assert.Zero(t, a.Dropped())
}

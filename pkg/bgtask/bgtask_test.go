package bgtask

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_GoRunsAndStopWaits(t *testing.T) {
	tr := New()
	ctx := tr.Start(context.Background())

	var running atomic.Bool
	started := make(chan struct{})
	tr.Go(ctx, "ticker", func(ctx context.Context) error {
		running.Store(true)
		close(started)
		<-ctx.Done()
		running.Store(false)
		return nil
	})

	<-started
	assert.Contains(t, tr.Running(), "ticker")

	tr.Stop()
	assert.False(t, running.Load())
	assert.Empty(t, tr.Running())
}

func TestTracker_GoBeforeStartIsNoop(t *testing.T) {
	tr := New()
	tr.Go(context.Background(), "too-early", func(ctx context.Context) error {
		t.Fatal("job should never run")
		return nil
	})
	assert.Empty(t, tr.Running())
}

func TestTracker_DuplicateNameRejected(t *testing.T) {
	tr := New()
	ctx := tr.Start(context.Background())
	defer tr.Stop()

	block := make(chan struct{})
	tr.Go(ctx, "dup", func(ctx context.Context) error {
		<-block
		return nil
	})
	tr.Go(ctx, "dup", func(ctx context.Context) error {
		t.Fatal("second registration with the same name must not run")
		return nil
	})

	require.Eventually(t, func() bool {
		return len(tr.Running()) == 1
	}, time.Second, 10*time.Millisecond)

	close(block)
}

func TestTracker_PanicIsRecovered(t *testing.T) {
	tr := New()
	ctx := tr.Start(context.Background())

	tr.Go(ctx, "panics", func(ctx context.Context) error {
		panic("boom")
	})

	require.Eventually(t, func() bool {
		return len(tr.Running()) == 0
	}, time.Second, 10*time.Millisecond)

	tr.Stop()
}

func TestTracker_JobErrorIsLoggedNotFatal(t *testing.T) {
	tr := New()
	ctx := tr.Start(context.Background())

	tr.Go(ctx, "fails", func(ctx context.Context) error {
		return errors.New("boom")
	})

	require.Eventually(t, func() bool {
		return len(tr.Running()) == 0
	}, time.Second, 10*time.Millisecond)

	tr.Stop()
}

func TestTracker_StopWithoutStartIsNoop(t *testing.T) {
	tr := New()
	tr.Stop()
}

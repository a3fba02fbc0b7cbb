package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (r *blockingRunner) Run(ctx context.Context) (*Summary, error) {
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	return &Summary{Mode: "stub", FeedsProcessed: 1}, r.err
}

func TestTracker_RejectsOverlappingPasses(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	tracker := NewTracker(runner, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tracker.Run(context.Background())
		done <- err
	}()

	<-runner.started
	assert.True(t, tracker.Running())

	_, err := tracker.Run(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)

	close(runner.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not finish")
	}

	assert.False(t, tracker.Running())

	last, lastErr := tracker.Last()
	require.NotNil(t, last)
	assert.NoError(t, lastErr)
	assert.Equal(t, 1, last.FeedsProcessed)
}

func TestTracker_HooksRunOnlyAfterSuccess(t *testing.T) {
	runner := &blockingRunner{}
	tracker := NewTracker(runner, nil)

	var seen []*Summary
	tracker.OnComplete(func(ctx context.Context, summary *Summary) {
		seen = append(seen, summary)
	})

	last, err := tracker.Last()
	assert.Nil(t, last)
	assert.NoError(t, err)

	_, err = tracker.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, 1)

	runner.err = errors.New("aggregator down")
	_, err = tracker.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, seen, 1)

	_, lastErr := tracker.Last()
	assert.EqualError(t, lastErr, "aggregator down")
}

func TestTracker_HookRegisteredDuringPassWaitsForNextPass(t *testing.T) {
	tracker := NewTracker(&blockingRunner{}, nil)

	late := 0
	tracker.OnComplete(func(ctx context.Context, summary *Summary) {
		tracker.OnComplete(func(ctx context.Context, summary *Summary) { late++ })
	})

	_, err := tracker.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, late)

	_, err = tracker.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, late)
}

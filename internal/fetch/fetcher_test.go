package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetcher_SingleAttemptApplied(t *testing.T) {
	f := NewFetcher[string]()

	value, applied, err := f.Fetch(context.Background(), func(ctx context.Context) (string, error) {
		return "result", nil
	})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "result", value)
}

func TestFetcher_StaleEpochDiscarded(t *testing.T) {
	// First attempt resolves after the second: only the second may apply.
	f := NewFetcher[string]()

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	var firstValue, secondValue string
	var firstApplied, secondApplied bool
	var firstErr, secondErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstValue, firstApplied, firstErr = f.Fetch(context.Background(), func(ctx context.Context) (string, error) {
			close(firstStarted)
			<-releaseFirst
			return "first", nil
		})
	}()

	<-firstStarted
	secondValue, secondApplied, secondErr = f.Fetch(context.Background(), func(ctx context.Context) (string, error) {
		return "second", nil
	})
	close(releaseFirst)
	wg.Wait()

	require.NoError(t, secondErr)
	require.True(t, secondApplied)
	require.Equal(t, "second", secondValue)

	require.NoError(t, firstErr, "stale results are discarded silently, not surfaced as failures")
	require.False(t, firstApplied)
	require.Empty(t, firstValue)
}

func TestFetcher_NewAttemptCancelsInFlightContext(t *testing.T) {
	f := NewFetcher[int]()

	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})

	go f.Fetch(context.Background(), func(ctx context.Context) (int, error) {
		close(firstStarted)
		<-ctx.Done()
		close(firstCancelled)
		return 0, &Error{Kind: KindCancelled, Err: ctx.Err()}
	})

	<-firstStarted
	value, applied, err := f.Fetch(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 42, value)

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("first attempt's context was never cancelled")
	}
}

func TestFetcher_ErrorsPropagateForCurrentEpoch(t *testing.T) {
	f := NewFetcher[string]()

	boom := &Error{Kind: KindServerError, Status: 500}
	_, applied, err := f.Fetch(context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.False(t, applied)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, KindServerError, fe.Kind)
}

func TestFetcher_CancelSupersedesWithoutNewAttempt(t *testing.T) {
	f := NewFetcher[string]()

	started := make(chan struct{})
	done := make(chan struct{})
	var applied bool
	var err error

	go func() {
		defer close(done)
		_, applied, err = f.Fetch(context.Background(), func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "late", nil
		})
	}()

	<-started
	f.Cancel()
	<-done

	require.NoError(t, err)
	require.False(t, applied)
}

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ChangeDetected](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), ChangeDetected{Paths: []string{"a.md"}}))

	select {
	case got := <-ch:
		require.Equal(t, []string{"a.md"}, got.Paths)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_OutcomeSubscriptionReceivesBoth(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Outcome](b, 2)
	defer unsubscribe()
	require.Equal(t, 1, SubscriberCount[Outcome](b))

	require.NoError(t, b.Publish(context.Background(), BuildCompleted{CycleID: "c1"}))
	require.NoError(t, b.Publish(context.Background(), BuildFailed{CycleID: "c2", Err: errors.New("boom")}))

	first, second := <-ch, <-ch
	require.Equal(t, "c1", first.Cycle())
	require.Equal(t, "c2", second.Cycle())
	_, failed := second.(BuildFailed)
	require.True(t, failed)
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[BuildCompleted](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, BuildCompleted{})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryNotify, classified.Category())
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[RebuildNow](b, 1)
	unsubscribe()
	unsubscribe()
	require.Zero(t, SubscriberCount[RebuildNow](b))

	_, ok := <-ch
	require.False(t, ok)
	require.NoError(t, b.Publish(context.Background(), RebuildNow{}))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[BuildFailed](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)

	require.Error(t, b.Publish(context.Background(), BuildFailed{}))

	late, _ := Subscribe[BuildFailed](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBus_UnsubscribeReleasesBlockedPublisher(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[RebuildNow](b, 0)
	errc := make(chan error, 1)
	go func() { errc <- b.Publish(context.Background(), RebuildNow{}) }()

	time.Sleep(20 * time.Millisecond)
	unsubscribe()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after unsubscribe")
	}
}

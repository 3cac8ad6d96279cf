package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/kanselarij-vlaanderen/themis-export-service/internal/testing"
)

func receive(t *testing.T, ch chan *Job) *Job {
	t.Helper()
	select {
	case j := <-ch:
		return j
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return nil
	}
}

func TestQueuePublishesChanges(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(testdb.CreateMigratedTestDB(t))

	ch := q.Subscribe()
	defer q.Unsubscribe(ch)

	j := New(meeting, []Scope{ScopeNewsItems}, "", t0)
	require.NoError(t, q.Enqueue(ctx, j))
	assert.Equal(t, StatusScheduled, receive(t, ch).Status)

	require.NoError(t, q.Transition(ctx, j.ID, StatusScheduled, StatusOngoing))
	assert.Equal(t, StatusOngoing, receive(t, ch).Status)

	require.NoError(t, q.AddGenerated(ctx, j.ID, "http://mu.semte.ch/graphs/tmp/1"))
	assert.Equal(t, []string{"http://mu.semte.ch/graphs/tmp/1"}, receive(t, ch).Generated)

	require.NoError(t, q.Transition(ctx, j.ID, StatusOngoing, StatusFailure))
	assert.Equal(t, StatusFailure, receive(t, ch).Status)

	require.NoError(t, q.IncrementRetry(ctx, j.ID))
	assert.Equal(t, 1, receive(t, ch).RetryCount)
}

func TestQueueFailedTransitionPublishesNothing(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(testdb.CreateMigratedTestDB(t))
	j := New(meeting, nil, "", t0)
	require.NoError(t, q.Enqueue(ctx, j))

	ch := q.Subscribe()
	defer q.Unsubscribe(ch)

	assert.Error(t, q.Transition(ctx, j.ID, StatusOngoing, StatusSuccess))
	select {
	case got := <-ch:
		t.Fatalf("unexpected update for %s", got.ID)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(testdb.CreateMigratedTestDB(t))

	ch := q.Subscribe()
	q.Unsubscribe(ch)

	require.NoError(t, q.Enqueue(ctx, New(meeting, nil, "", t0)))
	assert.Len(t, ch, 0)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(testdb.CreateMigratedTestDB(t))
	ch := q.Subscribe()
	defer q.Unsubscribe(ch)

	for i := 0; i < SubscriberChannelBufferSize+5; i++ {
		require.NoError(t, q.Enqueue(ctx, New(meeting, nil, "", t0.Add(time.Duration(i)*time.Second))))
	}
	assert.Len(t, ch, SubscriberChannelBufferSize)
}

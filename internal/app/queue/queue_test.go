package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

func item(user string) request.QueueItem {
	return request.NewQueueItem(user, "https://example.com/"+user+".zip")
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := New(5)

	require.NoError(t, q.Enqueue(item("alice"), 2))
	require.NoError(t, q.Enqueue(item("bob"), 2))
	assert.Equal(t, 2, q.Len())

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "alice", first.UserName)

	second, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "bob", second.UserName)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_CapacityAndQuota(t *testing.T) {
	q := New(2)

	// Quota 1: the second request from the same user is refused while
	// capacity remains.
	require.NoError(t, q.Enqueue(item("alice"), 1))
	assert.ErrorIs(t, q.Enqueue(item("alice"), 1), ErrQuotaExceeded)

	require.NoError(t, q.Enqueue(item("bob"), 1))
	assert.Equal(t, 2, q.Len())

	// Full queue refuses everyone, quota notwithstanding.
	assert.ErrorIs(t, q.Enqueue(item("carol"), 99), ErrQueueFull)
}

func TestQueue_QuotaFreedByDequeue(t *testing.T) {
	q := New(5)

	require.NoError(t, q.Enqueue(item("alice"), 1))
	assert.ErrorIs(t, q.Enqueue(item("alice"), 1), ErrQuotaExceeded)

	_, ok := q.Dequeue()
	require.True(t, ok)

	assert.NoError(t, q.Enqueue(item("alice"), 1))
}

func TestQueue_CancelFirstMatching(t *testing.T) {
	q := New(5)

	first := item("alice")
	second := item("alice")
	require.NoError(t, q.Enqueue(first, 5))
	require.NoError(t, q.Enqueue(item("bob"), 5))
	require.NoError(t, q.Enqueue(second, 5))

	removed, ok := q.CancelFirstMatching("alice")
	require.True(t, ok)
	assert.Equal(t, first.ID, removed.ID)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.CountFor("alice"))

	// Order of the remaining items is preserved.
	snapshot := q.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "bob", snapshot[0].UserName)
	assert.Equal(t, second.ID, snapshot[1].ID)
}

func TestQueue_CancelNotifiesUnconditionally(t *testing.T) {
	q := New(5)

	notified := 0
	q.Subscribe(func(items []request.QueueItem) {
		notified++
	})

	_, ok := q.CancelFirstMatching("nobody")
	assert.False(t, ok)
	// Listeners fire even when nothing was removed; the UI relies on the
	// refresh.
	assert.Equal(t, 1, notified)
}

func TestQueue_ListenerReceivesSnapshot(t *testing.T) {
	q := New(5)

	var last []request.QueueItem
	q.Subscribe(func(items []request.QueueItem) {
		last = items
	})

	require.NoError(t, q.Enqueue(item("alice"), 5))
	require.Len(t, last, 1)
	assert.Equal(t, "alice", last[0].UserName)

	// Mutating the snapshot must not leak into the queue.
	last[0].UserName = "mallory"
	assert.Equal(t, "alice", q.Snapshot()[0].UserName)
}

func TestQueue_Snapshot(t *testing.T) {
	q := New(5)
	require.NoError(t, q.Enqueue(item("alice"), 5))

	snapshot := q.Snapshot()
	snapshot[0].UserName = "mallory"
	assert.Equal(t, "alice", q.Snapshot()[0].UserName)
}

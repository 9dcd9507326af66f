package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_PriorityOrder(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, PushAll(q, []*Task{
		{ID: "low-1", Priority: 0},
		{ID: "high", Priority: 5},
		{ID: "low-2", Priority: 0},
	}))
	assert.Equal(t, 3, q.Size())

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		task, err := q.Pop(ctx)
		require.NoError(t, err)
		got = append(got, task.ID)
	}
	assert.Equal(t, []string{"high", "low-1", "low-2"}, got)
	assert.Zero(t, q.Size())
}

func TestInMemoryQueue_PushStampsCreatedAt(t *testing.T) {
	q := NewInMemoryQueue()
	task := &Task{ID: "a"}
	require.NoError(t, q.Push(task))
	assert.False(t, task.CreatedAt.IsZero())
}

func TestInMemoryQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewInMemoryQueue()
	result := make(chan *Task, 1)

	go func() {
		task, err := q.Pop(context.Background())
		if err == nil {
			result <- task
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(&Task{ID: "late"}))

	select {
	case task := <-result:
		assert.Equal(t, "late", task.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestInMemoryQueue_PopHonoursContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryQueue_CloseDrainsThenFails(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Push(&Task{ID: "a"}))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Push(&Task{ID: "b"}), ErrQueueClosed)

	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", task.ID)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	_, err = q.TryPop()
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestInMemoryQueue_CloseWakesWaiters(t *testing.T) {
	q := NewInMemoryQueue()
	var wg sync.WaitGroup
	errs := make(chan error, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrQueueClosed)
	}
}

func TestInMemoryQueue_TryPopEmpty(t *testing.T) {
	q := NewInMemoryQueue()
	_, err := q.TryPop()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

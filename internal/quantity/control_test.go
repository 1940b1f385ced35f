package quantity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	calls  []int
	result func(int) (int, error)
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 10)}
}

func (r *recorder) commit(ctx context.Context, qty int) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, qty)
	fn := r.result
	r.mu.Unlock()
	defer func() { r.done <- struct{}{} }()
	if fn != nil {
		return fn(qty)
	}
	return qty, nil
}

func (r *recorder) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.calls...)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("commit not called")
	}
}

func TestClampToBounds(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 4, rec.commit, WithMax(5), WithDelay(time.Hour))
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Increment()
	}
	assert.Equal(t, 5, c.Displayed())
	assert.False(t, c.CanIncrement())

	for i := 0; i < 10; i++ {
		c.Decrement()
	}
	assert.Equal(t, 0, c.Displayed())
	assert.False(t, c.CanDecrement())
	assert.True(t, c.CanIncrement())
}

func TestRapidClicksCoalesceIntoOneCommit(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 1, rec.commit, WithDelay(50*time.Millisecond))
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Increment()
	}
	assert.Equal(t, 6, c.Displayed())

	rec.wait(t)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []int{6}, rec.Calls())
	assert.Equal(t, 6, c.Committed())
	assert.False(t, c.Pending())
}

func TestReconcilesToAuthoritativeValue(t *testing.T) {
	rec := newRecorder()
	rec.result = func(int) (int, error) { return 3, nil }
	c := New(context.Background(), 2, rec.commit, WithDelay(10*time.Millisecond))
	defer c.Close()

	c.Set(8)
	rec.wait(t)

	require.Eventually(t, func() bool { return c.Displayed() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, c.Committed())
}

func TestFailedCommitRevertsDisplay(t *testing.T) {
	rec := newRecorder()
	rec.result = func(int) (int, error) { return 0, errors.New("offline") }
	c := New(context.Background(), 2, rec.commit, WithDelay(10*time.Millisecond))
	defer c.Close()

	c.Increment()
	rec.wait(t)

	require.Eventually(t, func() bool { return c.Displayed() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, c.Committed())
}

func TestCloseCancelsPendingCommit(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 1, rec.commit, WithDelay(20*time.Millisecond))

	c.Increment()
	require.True(t, c.Pending())
	c.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.Calls())
	assert.Equal(t, 2, c.Increment(), "closed control ignores clicks")
}

func TestSyncDropsPendingChange(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 1, rec.commit, WithDelay(20*time.Millisecond))
	defer c.Close()

	c.Increment()
	c.Sync(4)

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.Calls())
	assert.Equal(t, 4, c.Displayed())
	assert.Equal(t, 4, c.Committed())
}

func TestReturningToCommittedValueSkipsCommit(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 3, rec.commit, WithDelay(20*time.Millisecond))
	defer c.Close()

	c.Increment()
	c.Decrement()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.Calls())
}

func TestQuantityAboveMaxStepsBackOnly(t *testing.T) {
	rec := newRecorder()
	c := New(context.Background(), 8, rec.commit, WithMax(5), WithDelay(10*time.Millisecond))
	defer c.Close()

	assert.Equal(t, 8, c.Displayed())
	assert.Equal(t, 8, c.Committed())
	assert.False(t, c.Pending())
	assert.False(t, c.CanIncrement())
	assert.Equal(t, 8, c.Increment())
	assert.False(t, c.Pending())

	assert.Equal(t, 7, c.Decrement())
	rec.wait(t)
	assert.Equal(t, []int{7}, rec.Calls())
	require.Eventually(t, func() bool { return c.Committed() == 7 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 5, c.Set(9))
}

package assistant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueue_PreservesSendOrder(t *testing.T) {
	var mu sync.Mutex
	var processed []string

	q := NewQueue(func(ctx context.Context, req *Request) (string, error) {
		mu.Lock()
		processed = append(processed, req.Message)
		mu.Unlock()
		return "ok: " + req.Message, nil
	}, zap.NewNop())

	const n = 20
	var wg sync.WaitGroup
	replies := make([]string, n)

	// Submit in order; each Submit registers the task before returning to
	// the goroutine, so stagger submissions to fix the order.
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf("msg-%02d", i)
		wg.Add(1)
		go func(i int, msg string) {
			defer wg.Done()
			reply, err := q.Submit(context.Background(), &Request{
				ConversationID: "conv-1",
				Message:        msg,
			})
			require.NoError(t, err)
			replies[i] = reply
		}(i, msg)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	require.Len(t, processed, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%02d", i), processed[i])
		assert.Equal(t, fmt.Sprintf("ok: msg-%02d", i), replies[i])
	}
}

func TestQueue_SingleInFlightPerConversation(t *testing.T) {
	var inFlight, maxInFlight int32

	q := NewQueue(func(ctx context.Context, req *Request) (string, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			observed := atomic.LoadInt32(&maxInFlight)
			if current <= observed || atomic.CompareAndSwapInt32(&maxInFlight, observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "done", nil
	}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Submit(context.Background(), &Request{
				ConversationID: "conv-1",
				Message:        "m",
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestQueue_ConversationsDrainIndependently(t *testing.T) {
	block := make(chan struct{})

	q := NewQueue(func(ctx context.Context, req *Request) (string, error) {
		if req.ConversationID == "slow" {
			<-block
		}
		return "done", nil
	}, zap.NewNop())

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := q.Submit(context.Background(), &Request{ConversationID: "slow", Message: "m"})
		assert.NoError(t, err)
	}()

	// The fast conversation must not wait behind the slow one.
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, err := q.Submit(context.Background(), &Request{ConversationID: "fast", Message: "m"})
		assert.NoError(t, err)
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast conversation blocked behind slow conversation")
	}

	close(block)
	<-slowDone
}

func TestQueue_CancelledWhileQueued(t *testing.T) {
	block := make(chan struct{})
	var calls int32

	q := NewQueue(func(ctx context.Context, req *Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		if req.Message == "first" {
			<-block
		}
		return "done", nil
	}, zap.NewNop())

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = q.Submit(context.Background(), &Request{ConversationID: "c", Message: "first"})
	}()

	// Give the first message time to start processing.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	secondDone := make(chan error, 1)
	go func() {
		_, err := q.Submit(ctx, &Request{ConversationID: "c", Message: "second"})
		secondDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-secondDone
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	<-firstDone

	// The drain loop skips the cancelled task instead of calling the backend.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 10*time.Millisecond)
}

package assistant

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// task is one queued outgoing message awaiting its reply
type task struct {
	ctx    context.Context
	req    *Request
	result chan taskResult
}

type taskResult struct {
	reply string
	err   error
}

// processFunc performs the actual backend call for one message
type processFunc func(ctx context.Context, req *Request) (string, error)

// Queue serializes outgoing messages per conversation: strict send order,
// at-most-one in-flight backend request per conversation. A draining flag
// per conversation guards against overlapping drain loops.
type Queue struct {
	mu       sync.Mutex
	pending  map[string][]*task
	draining map[string]bool
	process  processFunc
	logger   *zap.Logger
}

// NewQueue creates a message queue that hands tasks to process one at a time
func NewQueue(process processFunc, logger *zap.Logger) *Queue {
	return &Queue{
		pending:  make(map[string][]*task),
		draining: make(map[string]bool),
		process:  process,
		logger:   logger,
	}
}

// Submit enqueues the request on its conversation's queue and blocks until
// the reply arrives or ctx is done. Messages of one conversation are
// processed in submission order.
func (q *Queue) Submit(ctx context.Context, req *Request) (string, error) {
	t := &task{
		ctx: ctx,
		req: req,
		// Buffered so the drain loop never blocks on an abandoned caller.
		result: make(chan taskResult, 1),
	}

	q.mu.Lock()
	q.pending[req.ConversationID] = append(q.pending[req.ConversationID], t)
	if !q.draining[req.ConversationID] {
		q.draining[req.ConversationID] = true
		go q.drain(req.ConversationID)
	}
	q.mu.Unlock()

	select {
	case res := <-t.result:
		return res.reply, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// drain processes the conversation's queue until it is empty
func (q *Queue) drain(conversationID string) {
	for {
		q.mu.Lock()
		tasks := q.pending[conversationID]
		if len(tasks) == 0 {
			q.draining[conversationID] = false
			delete(q.pending, conversationID)
			q.mu.Unlock()
			return
		}
		t := tasks[0]
		q.pending[conversationID] = tasks[1:]
		q.mu.Unlock()

		if err := t.ctx.Err(); err != nil {
			// Caller gave up while queued; skip the backend call.
			t.result <- taskResult{err: err}
			continue
		}

		reply, err := q.process(t.ctx, t.req)
		if err != nil {
			q.logger.Warn("Assistant request failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
		t.result <- taskResult{reply: reply, err: err}
	}
}

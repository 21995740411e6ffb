package forwarder

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 队列已关闭，不再接受新任务
var ErrQueueClosed = errors.New("outbound queue closed")

// OutboundQueue 有界出站队列
// Enqueue 在队列满时阻塞（背压阀门），绝不丢弃；
// Dequeue 在队列空时阻塞。FIFO 只约束出队顺序，不约束完成顺序。
type OutboundQueue struct {
	ch chan *ForwardJob

	mu     sync.RWMutex
	closed bool
}

// NewOutboundQueue 创建出站队列
func NewOutboundQueue(capacity int) *OutboundQueue {
	return &OutboundQueue{
		ch: make(chan *ForwardJob, capacity),
	}
}

// Enqueue 入队一个投递任务
// 队列满时阻塞调用方，直到腾出容量或 ctx 取消。
func (q *OutboundQueue) Enqueue(ctx context.Context, job *ForwardJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue 出队一个投递任务
// 队列空时阻塞，直到有任务、队列关闭并清空（ok=false）或 ctx 取消。
func (q *OutboundQueue) Dequeue(ctx context.Context) (*ForwardJob, bool) {
	select {
	case job, ok := <-q.ch:
		return job, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Close 关闭队列：停止接收新任务，已入队任务仍会被取走
func (q *OutboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len 当前排队任务数
func (q *OutboundQueue) Len() int { return len(q.ch) }

// Cap 队列容量
func (q *OutboundQueue) Cap() int { return cap(q.ch) }

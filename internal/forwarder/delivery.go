package forwarder

import (
	"context"
	"sync"
	"time"

	"forward_bot/internal/forwarder/models"
	"forward_bot/internal/forwarder/repository"
	"forward_bot/internal/logger"
	"forward_bot/internal/sink"
)

// rateLimitSlack 限流提示之外的额外等待
const rateLimitSlack = time.Second

// sinkRatePerSecond 投递出口的全局速率上限
const sinkRatePerSecond = 20

// WorkerPool 投递工作池
// 固定数量的 worker 从出站队列取任务并投递；
// 每个 worker 一次只处理一个任务，处理完才取下一个。
type WorkerPool struct {
	queue       *OutboundQueue
	sink        sink.Sink
	gate        *DedupGate
	recordRepo  repository.MatchRecordRepository
	limiter     *RateLimiter
	workers     int
	maxAttempts int

	wg sync.WaitGroup
}

// NewWorkerPool 创建投递工作池
func NewWorkerPool(
	queue *OutboundQueue,
	snk sink.Sink,
	gate *DedupGate,
	recordRepo repository.MatchRecordRepository,
	workers int,
	maxAttempts int,
) *WorkerPool {
	return &WorkerPool{
		queue:       queue,
		sink:        snk,
		gate:        gate,
		recordRepo:  recordRepo,
		limiter:     NewRateLimiter(sinkRatePerSecond),
		workers:     workers,
		maxAttempts: maxAttempts,
	}
}

// Start 启动 worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	logger.L().Infof("Delivery pool started with %d workers, queue capacity %d", p.workers, p.queue.Cap())
}

// Shutdown 优雅关闭：关闭队列、等所有 worker 排空并退出
func (p *WorkerPool) Shutdown() {
	logger.L().Info("Shutting down delivery pool...")

	p.queue.Close()
	p.wg.Wait()
	p.limiter.Close()

	logger.L().Info("Delivery pool shut down")
}

// worker 工作协程
func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger.L().Debugf("Delivery worker %d started", id)

	for {
		job, ok := p.queue.Dequeue(ctx)
		if !ok {
			break
		}

		// 带 panic recovery，单任务失败不拖垮 worker
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.L().Errorf("Delivery worker %d: panic recovered: %v", id, r)
					p.gate.Release(job.Key)
				}
			}()

			p.deliver(ctx, id, job)
		}()
	}

	logger.L().Debugf("Delivery worker %d stopped", id)
}

// deliver 投递一个任务直到成功、终态失败或尝试耗尽
// 限流响应按服务端提示原地等待后重试同一任务，绝不放回队列。
func (p *WorkerPool) deliver(ctx context.Context, id int, job *ForwardJob) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}

		err := p.sink.Send(ctx, job.Message)
		if err == nil {
			p.gate.MarkSent(job.Key)
			p.recordOutcome(job.TaskID, models.MatchStatusSent)
			logger.L().Debugf("Worker %d delivered chat=%d message=%d (attempt %d)", id, job.Key.ChatID, job.Key.MessageID, attempt)
			return
		}

		if wait, ok := sink.AsRateLimit(err); ok {
			pause := wait + rateLimitSlack
			logger.L().Warnf("Worker %d rate limited, waiting %s before retrying chat=%d message=%d (attempt %d/%d)",
				id, pause, job.Key.ChatID, job.Key.MessageID, attempt, p.maxAttempts)

			select {
			case <-time.After(pause):
				continue
			case <-ctx.Done():
			}
			break
		}

		// 其他错误对本次投递是终态
		logger.L().Errorf("Worker %d delivery failed for chat=%d message=%d: %v", id, job.Key.ChatID, job.Key.MessageID, err)
		break
	}

	// 释放认领：同一消息之后可被再次认领（例如另一账号稍后观察到）
	p.gate.Release(job.Key)
	p.recordOutcome(job.TaskID, models.MatchStatusFailed)
}

// recordOutcome 回写审计记录（尽力而为）
func (p *WorkerPool) recordOutcome(taskID, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := p.recordRepo.UpdateStatus(ctx, taskID, status); err != nil {
		logger.L().Warnf("Failed to update match record %s: %v", taskID, err)
	}
}

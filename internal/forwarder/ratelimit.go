package forwarder

import (
	"context"
	"time"
)

// RateLimiter Token Bucket 速率限制器
// 用于全局压制投递频率，避免无谓触发 Telegram API 限流。
type RateLimiter struct {
	tokens   chan struct{} // 令牌桶
	stopCh   chan struct{} // 停止信号
	interval time.Duration // 令牌补充间隔
}

// NewRateLimiter 创建速率限制器
// ratePerSecond: 每秒允许的请求数
func NewRateLimiter(ratePerSecond int) *RateLimiter {
	limiter := &RateLimiter{
		tokens:   make(chan struct{}, ratePerSecond),
		stopCh:   make(chan struct{}),
		interval: time.Second / time.Duration(ratePerSecond),
	}

	// 初始填充令牌桶
	for i := 0; i < ratePerSecond; i++ {
		limiter.tokens <- struct{}{}
	}

	go limiter.refill()

	return limiter
}

// Wait 等待获取令牌（阻塞直到有可用令牌或上下文取消）
func (r *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.tokens:
		return nil
	}
}

// refill 定时补充令牌
func (r *RateLimiter) refill() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			select {
			case r.tokens <- struct{}{}:
			default:
				// 令牌桶已满，跳过
			}
		}
	}
}

// Close 关闭速率限制器
func (r *RateLimiter) Close() {
	close(r.stopCh)
}

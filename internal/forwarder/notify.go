package forwarder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forward_bot/internal/logger"
	"forward_bot/internal/sink"
)

// Notifier 运行状态通知器
// 向管理员发送启动/账号故障等外向通知；同一 cause key 在抑制窗口内只发一次。
// 所有发送都是尽力而为，失败只记录日志。
type Notifier struct {
	sink     sink.Sink
	adminIDs []int64
	suppress time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time // 测试注入
}

// NewNotifier 创建通知器
func NewNotifier(snk sink.Sink, adminIDs []int64, suppress time.Duration) *Notifier {
	return &Notifier{
		sink:     snk,
		adminIDs: adminIDs,
		suppress: suppress,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify 按 cause key 发送一条通知
// 同一 key 在抑制窗口内的重复调用会被吞掉，返回 false。
func (n *Notifier) Notify(ctx context.Context, causeKey, text string) bool {
	if len(n.adminIDs) == 0 {
		return false
	}

	n.mu.Lock()
	now := n.now()
	if last, ok := n.lastSent[causeKey]; ok && now.Sub(last) < n.suppress {
		n.mu.Unlock()
		return false
	}
	n.lastSent[causeKey] = now
	n.mu.Unlock()

	for _, adminID := range n.adminIDs {
		err := n.sink.Send(ctx, &sink.Message{
			Destination: adminID,
			Text:        text,
		})
		if err != nil {
			logger.L().Warnf("Failed to notify admin %d: %v", adminID, err)
		}
	}
	return true
}

// NotifyStartup 启动通知
func (n *Notifier) NotifyStartup(ctx context.Context, accounts int) {
	n.Notify(ctx, "startup", fmt.Sprintf("🚀 Forward bot ishga tushdi (%d ta akkaunt)", accounts))
}

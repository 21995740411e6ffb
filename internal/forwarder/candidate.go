package forwarder

import (
	"time"

	"forward_bot/internal/sink"
)

// ForwardCandidate 命中关键词后生成的转发候选
type ForwardCandidate struct {
	AccountID string // 发现该消息的账号

	ChatID    int64  // 来源聊天 ID
	MessageID int64  // 来源消息 ID
	GroupName string // 来源群显示名称

	Keyword  string // 命中的关键词
	Body     string // 清理后的正文
	SenderRef string // 渲染后的发送者引用

	MessageLink string   // 消息永久链接
	GroupLink   string   // 群入口链接
	ExtraLinks  []string // 正文中提取的额外链接（≤3，去重，保持首见顺序）

	DiscoveredAt time.Time
}

// Key 返回候选对应的去重键
func (c *ForwardCandidate) Key() DedupKey {
	return DedupKey{ChatID: c.ChatID, MessageID: c.MessageID}
}

// ForwardJob 候选的投递投影：进入出站队列的最终形态
type ForwardJob struct {
	Key     DedupKey      // 去重键，投递结果回写闸门时使用
	TaskID  string        // 审计记录任务 ID
	Message *sink.Message // 已渲染的投递请求
}

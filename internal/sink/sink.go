package sink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Button 内联按钮（文本 + 跳转链接）
type Button struct {
	Label string
	URL   string
}

// Message 一次投递请求
type Message struct {
	Destination    int64      // 目标 Chat ID
	Text           string     // 消息正文
	HTML           bool       // 是否按 HTML 富文本解析
	DisablePreview bool       // 是否关闭链接预览
	Buttons        [][]Button // 内联按钮行
}

// RateLimitError 投递被限流
// RetryAfter 为服务端给出的等待提示，调用方等待后可重试同一条消息。
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// AsRateLimit 判断错误是否为限流，并返回等待提示
func AsRateLimit(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// Sink 投递出口
// Send 返回 nil 表示已接受；*RateLimitError 表示需等待后重试；
// 其他错误对本次尝试是终态。
type Sink interface {
	Send(ctx context.Context, msg *Message) error
}

package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAuthRevoked 账号凭据已失效（session 被注销或吊销）
// 对账号而言是终态错误：需要人工重新登录后才能恢复。
var ErrAuthRevoked = errors.New("account authorization revoked")

// FloodWaitError 枚举/订阅过程中收到的限流信号
// 调用方必须等待 RetryAfter 之后再重试。
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.RetryAfter)
}

// AsFloodWait 判断错误是否为限流信号
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.RetryAfter, true
	}
	return 0, false
}

// SenderKind 消息发送者类型
type SenderKind int

const (
	SenderUnknown          SenderKind = iota // 无法识别发送者
	SenderUser                               // 普通用户
	SenderAnonymousChannel                   // 频道署名/匿名管理员
)

// Event 入站消息事件
// 由各账号的 Message Source 投递给 AccountWatcher。
type Event struct {
	AccountID string // 观察到该消息的账号

	ChatID       int64  // 来源聊天 ID（Bot API 形式，超级群为 -100 前缀）
	ChatTitle    string // 来源聊天名称
	ChatUsername string // 来源聊天公开用户名（私有群为空）

	MessageID int64  // 消息 ID
	Text      string // 文本消息正文
	Caption   string // 媒体消息说明文字

	SenderKind     SenderKind
	SenderID       int64  // 发送者用户 ID（SenderUser 时有效）
	SenderUsername string // 发送者公开用户名
	SenderName     string // 发送者显示名

	EntityURLs []string // 来自消息实体标注的 URL（url/text_link）

	Outgoing bool // 是否为账号自己发出的消息

	ReceivedAt time.Time
}

// HasText 消息是否带有可匹配文本（正文优先于说明文字）
func (e *Event) HasText() bool {
	return e.Text != "" || e.Caption != ""
}

// Body 返回用于匹配的文本（正文优先）
func (e *Event) Body() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Caption
}

// Membership 账号当前所在的一个群
type Membership struct {
	GroupID int64  // 群 Chat ID（Bot API 形式）
	Title   string // 群名称
}

// Handler 入站事件回调
// 实现必须自行容错：回调返回的错误只记录日志，不会中断订阅。
type Handler func(ctx context.Context, event *Event) error

// Source 单个账号的消息源
type Source interface {
	// Subscribe 注册入站消息回调，必须在 Start 之前调用
	Subscribe(h Handler)

	// Start 建立连接并持续接收消息（阻塞，直到 ctx 取消或出现致命错误）
	Start(ctx context.Context) error

	// Stop 停止接收消息并断开连接
	Stop(ctx context.Context) error

	// EnumerateMemberships 枚举账号当前所在的全部群
	// 可能返回 *FloodWaitError，调用方需等待后重试。
	EnumerateMemberships(ctx context.Context) ([]Membership, error)

	// PurgeSession 删除本地 session 痕迹（凭据失效后调用）
	PurgeSession() error
}

// Factory 按账号 ID 创建消息源
type Factory func(accountID string) (Source, error)

package mtproto

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"forward_bot/internal/logger"
	"forward_bot/internal/source"
)

// botAPIChannelOffset 超级群/频道 ID 在 Bot API 侧的前缀偏移
const botAPIChannelOffset = int64(1000000000000)

// Config MTProto 账号连接配置
type Config struct {
	APIID      int    // Telegram API ID
	APIHash    string // Telegram API Hash
	SessionDir string // session 文件目录
}

// Client 基于 MTProto 的单账号消息源
// 一个 Client 对应一个已登录的用户账号 session。
type Client struct {
	accountID   string
	sessionPath string

	client  *telegram.Client
	handler source.Handler

	mu      sync.Mutex
	selfID  int64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New 创建账号消息源
// session 文件不存在时 Start 会以 ErrAuthRevoked 失败（需外部预登录）。
func New(cfg Config, accountID string) (*Client, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, fmt.Errorf("telegram api credentials cannot be empty")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account id cannot be empty")
	}

	c := &Client{
		accountID:   accountID,
		sessionPath: filepath.Join(cfg.SessionDir, accountID+".session.json"),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)
	dispatcher.OnNewChannelMessage(c.onNewChannelMessage)

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.sessionPath},
		UpdateHandler:  dispatcher,
	})

	return c, nil
}

// Factory 返回按账号 ID 创建消息源的工厂
func Factory(cfg Config) source.Factory {
	return func(accountID string) (source.Source, error) {
		return New(cfg, accountID)
	}
}

// Subscribe 注册入站消息回调，必须在 Start 之前调用
func (c *Client) Subscribe(h source.Handler) {
	c.handler = h
}

// Start 建立连接并持续接收消息（阻塞，直到 ctx 取消或出现致命错误）
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("source for account %s already started", c.accountID)
	}
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		close(c.done)
		c.mu.Unlock()
		cancel()
	}()

	err := c.client.Run(runCtx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to query auth status: %w", err)
		}
		if !status.Authorized {
			return source.ErrAuthRevoked
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve self: %w", err)
		}
		c.mu.Lock()
		c.selfID = self.ID
		c.mu.Unlock()

		logger.WithAccount(c.accountID).Info("MTProto source connected")

		<-ctx.Done()
		return ctx.Err()
	})

	return c.translateError(err)
}

// Stop 停止接收消息并断开连接
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnumerateMemberships 枚举账号当前所在的全部群
func (c *Client) EnumerateMemberships(ctx context.Context) ([]source.Membership, error) {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("source for account %s is not connected", c.accountID)
	}

	dialogs, err := c.client.API().MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      500,
	})
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return nil, &source.FloodWaitError{RetryAfter: wait}
		}
		return nil, c.translateError(err)
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return nil, nil
	}

	memberships := make([]source.Membership, 0, len(chats))
	for _, chat := range chats {
		switch ch := chat.(type) {
		case *tg.Chat:
			if ch.Left {
				continue
			}
			memberships = append(memberships, source.Membership{
				GroupID: -ch.ID,
				Title:   ch.Title,
			})
		case *tg.Channel:
			if ch.Left {
				continue
			}
			memberships = append(memberships, source.Membership{
				GroupID: -(botAPIChannelOffset + ch.ID),
				Title:   ch.Title,
			})
		}
	}

	return memberships, nil
}

// PurgeSession 删除本地 session 文件
func (c *Client) PurgeSession() error {
	if err := os.Remove(c.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// translateError 将底层错误映射为包级错误类型
func (c *Client) translateError(err error) error {
	if err == nil {
		return nil
	}
	if tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED") {
		return fmt.Errorf("%w: %v", source.ErrAuthRevoked, err)
	}
	return err
}

func (c *Client) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	return c.dispatch(ctx, e, msg)
}

func (c *Client) onNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	return c.dispatch(ctx, e, msg)
}

// dispatch 把原始消息翻译成 source.Event 并交给回调
func (c *Client) dispatch(ctx context.Context, e tg.Entities, msg *tg.Message) error {
	if c.handler == nil {
		return nil
	}

	event := &source.Event{
		AccountID:  c.accountID,
		MessageID:  int64(msg.ID),
		Outgoing:   msg.Out,
		EntityURLs: extractEntityURLs(msg),
		ReceivedAt: time.Now(),
	}

	// 正文/说明文字：媒体消息的 Message 字段即 caption
	if msg.Media == nil {
		event.Text = msg.Message
	} else {
		event.Caption = msg.Message
	}

	switch peer := msg.PeerID.(type) {
	case *tg.PeerChat:
		event.ChatID = -peer.ChatID
		if chat, ok := e.Chats[peer.ChatID]; ok {
			event.ChatTitle = chat.Title
		}
	case *tg.PeerChannel:
		event.ChatID = -(botAPIChannelOffset + peer.ChannelID)
		if channel, ok := e.Channels[peer.ChannelID]; ok {
			event.ChatTitle = channel.Title
			event.ChatUsername = channel.Username
		}
	default:
		// 私聊消息不属于任何被监控群，直接丢弃
		return nil
	}

	c.fillSender(e, msg, event)

	if err := c.handler(ctx, event); err != nil {
		logger.WithAccount(c.accountID).Warnf("Event handler error for message %d: %v", msg.ID, err)
	}
	return nil
}

// fillSender 识别发送者：普通用户 / 匿名频道署名 / 未知
func (c *Client) fillSender(e tg.Entities, msg *tg.Message, event *source.Event) {
	if from, ok := msg.FromID.(*tg.PeerUser); ok {
		event.SenderKind = source.SenderUser
		event.SenderID = from.UserID
		if user, ok := e.Users[from.UserID]; ok {
			event.SenderUsername = user.Username
			event.SenderName = user.FirstName
		}
		c.mu.Lock()
		if from.UserID == c.selfID {
			event.Outgoing = true
		}
		c.mu.Unlock()
		return
	}

	if msg.Post || msg.PostAuthor != "" || msg.FromID == nil {
		event.SenderKind = source.SenderAnonymousChannel
		event.SenderName = msg.PostAuthor
		return
	}

	event.SenderKind = source.SenderUnknown
}

// extractEntityURLs 从消息实体标注中提取 URL（url/text_link）
// 实体偏移量按 UTF-16 计，需先转码再切片。
func extractEntityURLs(msg *tg.Message) []string {
	if len(msg.Entities) == 0 {
		return nil
	}

	encoded := utf16.Encode([]rune(msg.Message))
	urls := make([]string, 0, len(msg.Entities))

	for _, entity := range msg.Entities {
		switch ent := entity.(type) {
		case *tg.MessageEntityURL:
			if ent.Offset < 0 || ent.Offset+ent.Length > len(encoded) {
				continue
			}
			urls = append(urls, string(utf16.Decode(encoded[ent.Offset:ent.Offset+ent.Length])))
		case *tg.MessageEntityTextURL:
			urls = append(urls, ent.URL)
		}
	}

	if len(urls) == 0 {
		return nil
	}
	return urls
}

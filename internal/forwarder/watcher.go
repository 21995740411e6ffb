package forwarder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"forward_bot/internal/forwarder/models"
	"forward_bot/internal/forwarder/repository"
	"forward_bot/internal/logger"
	"forward_bot/internal/source"
)

// auditTimeout 旁路审计写入的独立超时
const auditTimeout = 5 * time.Second

// Watcher 单账号消息观察者
// 对每条入站消息依次执行：回环保护 → 范围保护 → 文本提取 →
// 链接提取 → 正文清理 → 关键词匹配，命中后认领去重键并入队。
type Watcher struct {
	accountID   string
	destGroupID int64
	watchAll    bool // 为 true 时跳过群目录范围过滤

	refresher  *Refresher
	gate       *DedupGate
	queue      *OutboundQueue
	recordRepo repository.MatchRecordRepository
}

// NewWatcher 创建账号观察者
func NewWatcher(
	accountID string,
	destGroupID int64,
	watchAll bool,
	refresher *Refresher,
	gate *DedupGate,
	queue *OutboundQueue,
	recordRepo repository.MatchRecordRepository,
) *Watcher {
	return &Watcher{
		accountID:   accountID,
		destGroupID: destGroupID,
		watchAll:    watchAll,
		refresher:   refresher,
		gate:        gate,
		queue:       queue,
		recordRepo:  recordRepo,
	}
}

// HandleEvent 处理一条入站消息
// 返回的错误只用于日志；任何失败都不会中断订阅。
func (w *Watcher) HandleEvent(ctx context.Context, event *source.Event) error {
	// (a) 回环保护：目的群的消息绝不回流
	if event.ChatID == w.destGroupID {
		return nil
	}

	// 自己发的消息不处理
	if event.Outgoing {
		return nil
	}

	w.refresher.RefreshIfStale(ctx)
	snap := w.refresher.Current()

	// (b) 范围保护：只扫被监控群
	if !w.watchAll && !snap.WatchesGroup(event.ChatID) {
		return nil
	}

	// (c) 文本提取：正文优先于说明文字
	if !event.HasText() {
		return nil
	}
	body := event.Body()

	// (d) 链接提取 + (e) 正文清理
	extraLinks, bodyURLs := ExtractLinks(body, event.EntityURLs)
	cleaned := CleanBody(body, bodyURLs)
	if cleaned == "" {
		return nil
	}

	// (f) 关键词匹配：快照顺序，首个命中胜出
	keyword, ok := MatchKeyword(cleaned, snap.Keywords)
	if !ok {
		return nil
	}

	messageLink := MessageLink(event.ChatID, event.ChatUsername, event.MessageID)
	groupName := snap.GroupName(event.ChatID)
	if groupName == "" {
		groupName = event.ChatTitle
	}

	candidate := &ForwardCandidate{
		AccountID:    w.accountID,
		ChatID:       event.ChatID,
		MessageID:    event.MessageID,
		GroupName:    groupName,
		Keyword:      keyword,
		Body:         cleaned,
		SenderRef:    RenderSenderRef(event, messageLink),
		MessageLink:  messageLink,
		GroupLink:    GroupLink(event.ChatUsername, messageLink),
		ExtraLinks:   extraLinks,
		DiscoveredAt: time.Now(),
	}

	taskID := uuid.New().String()

	// 旁路审计：独立 goroutine + 独立超时，失败不影响转发路径
	go w.writeAudit(taskID, candidate)

	// 去重认领：另一账号已认领同一消息时直接丢弃
	if !w.gate.Claim(candidate.Key()) {
		logger.WithAccount(w.accountID).Debugf("Duplicate occurrence dropped: chat=%d message=%d", candidate.ChatID, candidate.MessageID)
		return nil
	}

	job := BuildJob(candidate, taskID, w.destGroupID)
	if err := w.queue.Enqueue(ctx, job); err != nil {
		// 入队失败意味着任务不会被投递，释放认领让其他账号有机会重试
		w.gate.Release(candidate.Key())
		logger.WithAccount(w.accountID).Warnf("Failed to enqueue forward job: %v", err)
		return err
	}

	logger.WithAccount(w.accountID).Infof("Matched %q in group %d, queued message %d", keyword, candidate.ChatID, candidate.MessageID)
	return nil
}

// writeAudit 写入命中审计记录（尽力而为）
func (w *Watcher) writeAudit(taskID string, candidate *ForwardCandidate) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	record := &models.MatchRecord{
		TaskID:    taskID,
		AccountID: candidate.AccountID,
		ChatID:    candidate.ChatID,
		MessageID: candidate.MessageID,
		Keyword:   candidate.Keyword,
		Status:    models.MatchStatusMatched,
		CreatedAt: time.Now(),
	}

	if err := w.recordRepo.Create(ctx, record); err != nil {
		logger.WithAccount(w.accountID).Warnf("Failed to write match record: %v", err)
	}
}

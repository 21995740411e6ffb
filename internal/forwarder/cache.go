package forwarder

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"forward_bot/internal/forwarder/repository"
	"forward_bot/internal/logger"
)

// Snapshot 关键词与被监控群目录的只读快照
// 整体替换，永不原地修改；读取方无需加锁。
type Snapshot struct {
	Keywords  []string         // 小写关键词，保持库中顺序
	Groups    map[int64]string // 来源群 Chat ID → 群名称
	FetchedAt time.Time        // 快照生成时间
}

// WatchesGroup 判断聊天是否在被监控目录中
func (s *Snapshot) WatchesGroup(chatID int64) bool {
	_, ok := s.Groups[chatID]
	return ok
}

// GroupName 返回群显示名称（未知群返回空串）
func (s *Snapshot) GroupName(chatID int64) string {
	return s.Groups[chatID]
}

// Refresher 周期性刷新快照的缓存层
// 刷新失败只记录日志，旧快照继续服务读取。
type Refresher struct {
	keywordRepo repository.KeywordRepository
	groupRepo   repository.GroupRepository
	destGroupID int64
	interval    time.Duration

	snapshot atomic.Value // *Snapshot

	refreshMu sync.Mutex // 串行化按需刷新

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher 创建缓存刷新器（初始快照为空）
func NewRefresher(keywordRepo repository.KeywordRepository, groupRepo repository.GroupRepository, destGroupID int64, interval time.Duration) *Refresher {
	r := &Refresher{
		keywordRepo: keywordRepo,
		groupRepo:   groupRepo,
		destGroupID: destGroupID,
		interval:    interval,
	}
	r.snapshot.Store(&Snapshot{Groups: map[int64]string{}})
	return r
}

// Current 返回当前快照（永不阻塞，永不为 nil）
func (r *Refresher) Current() *Snapshot {
	return r.snapshot.Load().(*Snapshot)
}

// Refresh 全量拉取关键词和群目录并整体替换快照
// 任一查询失败都保留旧快照。
func (r *Refresher) Refresh(ctx context.Context) error {
	keywords, err := r.keywordRepo.List(ctx)
	if err != nil {
		return err
	}

	groups, err := r.groupRepo.ListSources(ctx)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Keywords:  make([]string, 0, len(keywords)),
		Groups:    make(map[int64]string, len(groups)),
		FetchedAt: time.Now(),
	}

	for _, kw := range keywords {
		snap.Keywords = append(snap.Keywords, strings.ToLower(kw.Keyword))
	}
	for _, g := range groups {
		// 目的群永不进入来源目录
		if g.GroupID == r.destGroupID {
			continue
		}
		snap.Groups[g.GroupID] = g.Name
	}

	r.snapshot.Store(snap)
	logger.L().Infof("Cache refreshed: %d keywords, %d watched groups", len(snap.Keywords), len(snap.Groups))
	return nil
}

// RefreshIfStale 快照超过刷新间隔时按需刷新
// 并发调用会被串行化，刷新失败不向上传播。
func (r *Refresher) RefreshIfStale(ctx context.Context) {
	if time.Since(r.Current().FetchedAt) < r.interval {
		return
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// 等锁期间可能已有人刷新过
	if time.Since(r.Current().FetchedAt) < r.interval {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		logger.L().Warnf("On-demand cache refresh failed: %v", err)
	}
}

// Start 启动周期刷新
func (r *Refresher) Start() {
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx)
	logger.L().Infof("Cache refresher started, interval %s", r.interval)
}

// Stop 停止周期刷新
func (r *Refresher) Stop() {
	if r.cancel == nil {
		return
	}

	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	logger.L().Info("Cache refresher stopped")
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshMu.Lock()
			if err := r.Refresh(ctx); err != nil {
				logger.L().Warnf("Periodic cache refresh failed: %v", err)
			}
			r.refreshMu.Unlock()
		}
	}
}

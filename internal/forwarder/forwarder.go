package forwarder

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"forward_bot/internal/config"
	"forward_bot/internal/forwarder/repository"
	"forward_bot/internal/logger"
	"forward_bot/internal/sink"
	"forward_bot/internal/source"
)

// Service 关键词转发管道
// 装配并管理缓存刷新、去重闸门、出站队列、投递工作池和账号生命周期。
type Service struct {
	destGroupID int64
	dedupTTL    time.Duration

	refresher *Refresher
	gate      *DedupGate
	queue     *OutboundQueue
	pool      *WorkerPool
	lifecycle *LifecycleManager
	notifier  *Notifier

	recordRepo repository.MatchRecordRepository

	poolCancel  context.CancelFunc
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// New 创建转发管道
func New(cfg *config.Config, db *mongo.Database, snk sink.Sink, factory source.Factory) (*Service, error) {
	keywordRepo := repository.NewKeywordRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	recordRepo := repository.NewMatchRecordRepository(db)

	if err := ensureIndexes(context.Background(), keywordRepo, groupRepo, accountRepo, membershipRepo, recordRepo); err != nil {
		return nil, err
	}

	refresher := NewRefresher(keywordRepo, groupRepo, cfg.DestGroupID, cfg.CacheTTL)
	gate := NewDedupGate(cfg.DedupTTL)
	queue := NewOutboundQueue(cfg.QueueCapacity)
	notifier := NewNotifier(snk, cfg.AdminIDs, cfg.NotifySuppress)
	pool := NewWorkerPool(queue, snk, gate, recordRepo, cfg.DeliveryWorkers, cfg.MaxDeliveryTries)

	svc := &Service{
		destGroupID: cfg.DestGroupID,
		dedupTTL:    cfg.DedupTTL,
		refresher:   refresher,
		gate:        gate,
		queue:       queue,
		pool:        pool,
		notifier:    notifier,
		recordRepo:  recordRepo,
	}

	handlerFor := func(accountID string) source.Handler {
		watcher := NewWatcher(accountID, cfg.DestGroupID, cfg.WatchAllGroups, refresher, gate, queue, recordRepo)
		return watcher.HandleEvent
	}

	svc.lifecycle = NewLifecycleManager(
		LifecycleConfig{
			DestGroupID:       cfg.DestGroupID,
			ResyncInterval:    cfg.ResyncInterval,
			DiscoveryInterval: cfg.DiscoveryInterval,
			ReconnectTries:    cfg.ReconnectTries,
			ReconnectDelay:    cfg.ReconnectDelay,
		},
		factory,
		handlerFor,
		accountRepo,
		membershipRepo,
		groupRepo,
		refresher,
		notifier,
	)

	return svc, nil
}

// Start 启动管道的全部后台任务
func (s *Service) Start(ctx context.Context) error {
	if err := s.refresher.Refresh(ctx); err != nil {
		// 初始刷新失败不致命：周期刷新会补上
		logger.L().Warnf("Initial cache refresh failed: %v", err)
	}
	s.refresher.Start()

	poolCtx, poolCancel := context.WithCancel(context.Background())
	s.poolCancel = poolCancel
	s.pool.Start(poolCtx)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	s.sweepCancel = sweepCancel
	s.sweepDone = make(chan struct{})
	go s.sweepLoop(sweepCtx)

	s.lifecycle.Start(ctx)

	s.notifier.NotifyStartup(ctx, s.lifecycle.RunningAccounts())

	logger.L().Info("Forward pipeline started")
	return nil
}

// Stop 优雅关闭
// 顺序：先停账号（不再产生新任务）→ 关队列并排空 → 停周期任务。
func (s *Service) Stop(ctx context.Context) error {
	logger.L().Info("Stopping forward pipeline...")

	s.lifecycle.Shutdown()
	s.pool.Shutdown()
	if s.poolCancel != nil {
		s.poolCancel()
	}

	s.refresher.Stop()

	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
	}

	logger.L().Info("Forward pipeline stopped")
	return nil
}

// sweepLoop 周期清理过期去重条目
func (s *Service) sweepLoop(ctx context.Context) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.dedupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.gate.Sweep(); removed > 0 {
				logger.L().Debugf("Dedup sweep removed %d entries, %d live", removed, s.gate.Len())
			}
		}
	}
}

// DisableAccount 外部指令：停用一个账号
func (s *Service) DisableAccount(accountID string) error {
	return s.lifecycle.DisableAccount(accountID)
}

func ensureIndexes(
	ctx context.Context,
	keywordRepo repository.KeywordRepository,
	groupRepo repository.GroupRepository,
	accountRepo repository.AccountRepository,
	membershipRepo repository.MembershipRepository,
	recordRepo repository.MatchRecordRepository,
) error {
	if err := keywordRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure keyword indexes: %w", err)
	}
	if err := groupRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure group indexes: %w", err)
	}
	if err := accountRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure account indexes: %w", err)
	}
	if err := membershipRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure membership indexes: %w", err)
	}
	if err := recordRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure match record indexes: %w", err)
	}
	return nil
}

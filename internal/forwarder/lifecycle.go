package forwarder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"forward_bot/internal/forwarder/models"
	"forward_bot/internal/forwarder/repository"
	"forward_bot/internal/logger"
	"forward_bot/internal/source"
)

// statusWriteTimeout 状态落库的独立超时（关闭流程中也要能写）
const statusWriteTimeout = 5 * time.Second

// LifecycleConfig 账号生命周期参数
type LifecycleConfig struct {
	DestGroupID       int64
	ResyncInterval    time.Duration // 成员关系重新同步间隔
	DiscoveryInterval time.Duration // 新账号发现轮询间隔
	ReconnectTries    int           // 重连尝试上限
	ReconnectDelay    time.Duration // 重连固定延迟
}

// LifecycleManager 账号生命周期管理器
// 每个账号一个状态机：pending → connecting → active；
// 凭据失效 → relogin_required（清 session）；外部停用 → disabled；
// 进程退出 → stopped。发现轮询实现免重启热添加账号。
type LifecycleManager struct {
	cfg        LifecycleConfig
	factory    source.Factory
	handlerFor func(accountID string) source.Handler

	accountRepo    repository.AccountRepository
	membershipRepo repository.MembershipRepository
	groupRepo      repository.GroupRepository
	refresher      *Refresher
	notifier       *Notifier

	mu      sync.Mutex
	runners map[string]*accountRunner

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type accountRunner struct {
	accountID string
	cancel    context.CancelFunc
	disabled  atomic.Bool // 外部停用：runner 退出时不得再写 stopped 覆盖 disabled
}

// NewLifecycleManager 创建生命周期管理器
func NewLifecycleManager(
	cfg LifecycleConfig,
	factory source.Factory,
	handlerFor func(accountID string) source.Handler,
	accountRepo repository.AccountRepository,
	membershipRepo repository.MembershipRepository,
	groupRepo repository.GroupRepository,
	refresher *Refresher,
	notifier *Notifier,
) *LifecycleManager {
	return &LifecycleManager{
		cfg:            cfg,
		factory:        factory,
		handlerFor:     handlerFor,
		accountRepo:    accountRepo,
		membershipRepo: membershipRepo,
		groupRepo:      groupRepo,
		refresher:      refresher,
		notifier:       notifier,
		runners:        make(map[string]*accountRunner),
	}
}

// Start 启动发现轮询
func (m *LifecycleManager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.discoveryLoop(runCtx)

	logger.L().Infof("Account discovery started, polling every %s", m.cfg.DiscoveryInterval)
}

// Shutdown 停止全部账号并等待退出
// 每个 runner 退出时会把自己的账号状态持久化为 stopped。
func (m *LifecycleManager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	logger.L().Info("All account watchers stopped")
}

// RunningAccounts 当前运行中的账号数
func (m *LifecycleManager) RunningAccounts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runners)
}

// DisableAccount 外部停用一个账号：停掉 watcher 并标记 disabled
func (m *LifecycleManager) DisableAccount(accountID string) error {
	m.mu.Lock()
	runner, ok := m.runners[accountID]
	m.mu.Unlock()

	if ok {
		// 先置标记再取消，runner 的退出路径据此跳过 stopped 落库
		runner.disabled.Store(true)
		runner.cancel()
	}

	if err := m.setStatus(accountID, models.AccountStatusDisabled, ""); err != nil {
		return fmt.Errorf("failed to disable account %s: %w", accountID, err)
	}
	return nil
}

// discoveryLoop 周期轮询账号表，为未运行的可启动账号拉起 watcher
func (m *LifecycleManager) discoveryLoop(ctx context.Context) {
	defer m.wg.Done()

	m.pollOnce(ctx)

	ticker := time.NewTicker(m.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *LifecycleManager) pollOnce(ctx context.Context) {
	accounts, err := m.accountRepo.ListStartable(ctx)
	if err != nil {
		// 存储不可用不致命：下个周期再试
		logger.L().Warnf("Account discovery poll failed: %v", err)
		return
	}

	for _, account := range accounts {
		m.mu.Lock()
		_, running := m.runners[account.AccountID]
		m.mu.Unlock()

		if running {
			continue
		}
		m.startAccount(ctx, account.AccountID)
	}
}

// startAccount 为账号启动独立的 runner goroutine
func (m *LifecycleManager) startAccount(ctx context.Context, accountID string) {
	runCtx, cancel := context.WithCancel(ctx)
	runner := &accountRunner{accountID: accountID, cancel: cancel}

	m.mu.Lock()
	m.runners[accountID] = runner
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, runner)

	logger.WithAccount(accountID).Info("Account watcher starting")
}

// run 账号主循环：连接、接收消息、按策略重连
// 重连用显式有界循环而非递归，避免反复失败时调用栈无限增长。
func (m *LifecycleManager) run(ctx context.Context, runner *accountRunner) {
	accountID := runner.accountID
	log := logger.WithAccount(accountID)

	defer func() {
		runner.cancel()
		m.mu.Lock()
		delete(m.runners, accountID)
		m.mu.Unlock()
		m.wg.Done()
	}()

	for attempt := 1; ; attempt++ {
		if err := m.setStatus(accountID, models.AccountStatusConnecting, ""); err != nil {
			log.Warnf("Failed to persist connecting status: %v", err)
		}

		src, err := m.factory(accountID)
		if err != nil {
			log.Errorf("Failed to create message source: %v", err)
			m.failAccount(ctx, accountID, err)
			return
		}
		src.Subscribe(m.handlerFor(accountID))

		var becameActive atomic.Bool
		resyncCtx, stopResync := context.WithCancel(ctx)
		go m.resyncLoop(resyncCtx, accountID, src, &becameActive)

		err = src.Start(ctx)
		stopResync()

		if serr := m.stopSource(src); serr != nil {
			log.Warnf("Failed to stop message source: %v", serr)
		}

		// 本次连接曾达到 active：重连预算重新计数，
		// 否则多日平稳运行中零星的瞬断也会累计到上限。
		if becameActive.Load() {
			attempt = 0
		}

		if ctx.Err() != nil {
			// 进程关闭或外部停用：持久化终态后退出
			// 外部停用时 disabled 已落库，这里不能再写 stopped 覆盖它
			if !runner.disabled.Load() {
				if serr := m.setStatus(accountID, models.AccountStatusStopped, ""); serr != nil {
					log.Warnf("Failed to persist stopped status: %v", serr)
				}
			}
			log.Info("Account watcher stopped")
			return
		}

		if errors.Is(err, source.ErrAuthRevoked) {
			// 凭据失效是账号级终态：清 session、标记、单次抑制通知、停止
			if perr := src.PurgeSession(); perr != nil {
				log.Warnf("Failed to purge session: %v", perr)
			}
			if serr := m.setStatus(accountID, models.AccountStatusReloginRequired, err.Error()); serr != nil {
				log.Warnf("Failed to persist relogin status: %v", serr)
			}
			m.notifier.Notify(ctx, "relogin:"+accountID,
				fmt.Sprintf("⛔️ Akkaunt %s sessiyasi bekor qilindi, qayta login kerak", accountID))
			log.Warn("Authorization revoked, session purged, watcher stopped")
			return
		}

		if attempt >= m.cfg.ReconnectTries {
			m.failAccount(ctx, accountID, err)
			return
		}

		log.Warnf("Source stopped: %v, reconnecting in %s (attempt %d/%d)",
			err, m.cfg.ReconnectDelay, attempt, m.cfg.ReconnectTries)

		select {
		case <-time.After(m.cfg.ReconnectDelay):
		case <-ctx.Done():
			if !runner.disabled.Load() {
				if serr := m.setStatus(accountID, models.AccountStatusStopped, ""); serr != nil {
					log.Warnf("Failed to persist stopped status: %v", serr)
				}
			}
			return
		}
	}
}

// failAccount 不可恢复的非凭据失败：标记 error 并通知
func (m *LifecycleManager) failAccount(ctx context.Context, accountID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := m.setStatus(accountID, models.AccountStatusError, msg); err != nil {
		logger.WithAccount(accountID).Warnf("Failed to persist error status: %v", err)
	}
	m.notifier.Notify(ctx, "error:"+accountID,
		fmt.Sprintf("❌ Akkaunt %s ishdan chiqdi: %s", accountID, msg))
}

// stopSource 对称地关闭消息源（Start 返回后等待即刻完成）
func (m *LifecycleManager) stopSource(src source.Source) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	return src.Stop(ctx)
}

// resyncLoop 周期性重新同步账号的群成员关系
// 首次同步成功后账号转入 active，并通过 becameActive 告知 runner。
func (m *LifecycleManager) resyncLoop(ctx context.Context, accountID string, src source.Source, becameActive *atomic.Bool) {
	log := logger.WithAccount(accountID)

	// 连接建立前的首次同步可能失败，短间隔重试直到成功
	for {
		err := m.resync(ctx, accountID, src)
		if err == nil {
			becameActive.Store(true)
			if serr := m.setStatus(accountID, models.AccountStatusActive, ""); serr != nil {
				log.Warnf("Failed to persist active status: %v", serr)
			}
			break
		}

		wait := 5 * time.Second
		if hint, ok := source.AsFloodWait(err); ok {
			// 枚举被限流：按提示睡够再试
			wait = hint
			log.Warnf("Membership enumeration rate limited, sleeping %s", wait)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(m.cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.resync(ctx, accountID, src); err != nil {
				if hint, ok := source.AsFloodWait(err); ok {
					select {
					case <-time.After(hint):
					case <-ctx.Done():
						return
					}
					err = m.resync(ctx, accountID, src)
				}
				if err != nil {
					log.Warnf("Membership resync failed: %v", err)
				}
			}
		}
	}
}

// resync 枚举成员关系并与上次已知状态求差
// 新发现的成员关系落库，新群登记进全局目录；目的群登记为 destination 角色。
func (m *LifecycleManager) resync(ctx context.Context, accountID string, src source.Source) error {
	memberships, err := src.EnumerateMemberships(ctx)
	if err != nil {
		return err
	}

	known := make(map[int64]struct{})
	if existing, err := m.membershipRepo.ListByAccount(ctx, accountID); err != nil {
		logger.WithAccount(accountID).Warnf("Failed to load known memberships: %v", err)
	} else {
		for _, mem := range existing {
			known[mem.GroupID] = struct{}{}
		}
	}

	now := time.Now()
	var discovered []*models.Membership
	for _, mem := range memberships {
		if _, ok := known[mem.GroupID]; ok {
			continue
		}
		discovered = append(discovered, &models.Membership{
			AccountID:   accountID,
			GroupID:     mem.GroupID,
			Title:       mem.Title,
			FirstSeenAt: now,
		})
	}

	if len(discovered) > 0 {
		if err := m.membershipRepo.InsertNew(ctx, discovered); err != nil {
			logger.WithAccount(accountID).Warnf("Failed to persist memberships: %v", err)
		}

		for _, mem := range discovered {
			role := models.GroupRoleSource
			if mem.GroupID == m.cfg.DestGroupID {
				// 目的群永不担任来源角色
				role = models.GroupRoleDestination
			}
			group := &models.WatchedGroup{
				GroupID: mem.GroupID,
				Name:    mem.Title,
				Role:    role,
			}
			if err := m.groupRepo.Register(ctx, group); err != nil {
				logger.WithAccount(accountID).Warnf("Failed to register group %d: %v", mem.GroupID, err)
			}
		}
	}

	snap := m.refresher.Current()
	activeCount := 0
	for _, mem := range memberships {
		if snap.WatchesGroup(mem.GroupID) {
			activeCount++
		}
	}

	if err := m.accountRepo.UpdateSyncStats(ctx, accountID, len(memberships), activeCount); err != nil {
		logger.WithAccount(accountID).Warnf("Failed to update sync stats: %v", err)
	}

	logger.WithAccount(accountID).Infof("Membership resync done: %d groups, %d watched, %d new",
		len(memberships), activeCount, len(discovered))
	return nil
}

// setStatus 持久化账号状态（独立超时，关闭流程中亦可用）
func (m *LifecycleManager) setStatus(accountID, status, lastErr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	return m.accountRepo.UpdateStatus(ctx, accountID, status, lastErr)
}

package repository

import (
	"context"

	"forward_bot/internal/forwarder/models"
)

// KeywordRepository 关键词数据访问接口
type KeywordRepository interface {
	// List 按创建顺序列出全部关键词
	List(ctx context.Context) ([]*models.Keyword, error)

	// Upsert 创建关键词（已存在则忽略）
	Upsert(ctx context.Context, keyword string) error

	// Delete 删除关键词
	Delete(ctx context.Context, keyword string) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// GroupRepository 被监控群数据访问接口
type GroupRepository interface {
	// ListSources 列出全部来源群（不含目的群）
	ListSources(ctx context.Context) ([]*models.WatchedGroup, error)

	// Register 登记群（已存在则更新名称）
	Register(ctx context.Context, group *models.WatchedGroup) error

	// GetByGroupID 根据 Chat ID 获取群
	GetByGroupID(ctx context.Context, groupID int64) (*models.WatchedGroup, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// AccountRepository 账号数据访问接口
type AccountRepository interface {
	// ListStartable 列出处于可启动状态的账号
	ListStartable(ctx context.Context) ([]*models.Account, error)

	// GetByAccountID 根据账号 ID 获取账号
	GetByAccountID(ctx context.Context, accountID string) (*models.Account, error)

	// UpdateStatus 更新账号状态（lastErr 可为空）
	UpdateStatus(ctx context.Context, accountID, status, lastErr string) error

	// UpdateSyncStats 更新成员关系同步统计
	UpdateSyncStats(ctx context.Context, accountID string, groupCount, activeGroupCount int) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// MembershipRepository 账号-群成员关系数据访问接口
type MembershipRepository interface {
	// ListByAccount 列出账号已知的全部成员关系
	ListByAccount(ctx context.Context, accountID string) ([]*models.Membership, error)

	// InsertNew 批量写入新发现的成员关系
	InsertNew(ctx context.Context, memberships []*models.Membership) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// MatchRecordRepository 命中审计记录数据访问接口
type MatchRecordRepository interface {
	// Create 写入一条命中记录
	Create(ctx context.Context, record *models.MatchRecord) error

	// UpdateStatus 更新投递结果
	UpdateStatus(ctx context.Context, taskID, status string) error

	// EnsureIndexes 确保索引存在（含 TTL 索引）
	EnsureIndexes(ctx context.Context) error
}

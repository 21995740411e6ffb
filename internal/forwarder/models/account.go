package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 账号状态常量
// 状态机：pending → connecting → active；
// 任意状态 → error（非凭据类不可恢复失败）；
// connecting/active → relogin_required（凭据失效，本地 session 已清除）；
// 外部指令 → disabled；进程退出 → stopped（重启后由发现轮询重新拉起）。
const (
	AccountStatusPending         = "pending"          // 已登记，等待接入
	AccountStatusConnecting      = "connecting"       // 正在建立连接
	AccountStatusActive          = "active"           // 正常收消息
	AccountStatusError           = "error"            // 不可恢复错误
	AccountStatusReloginRequired = "relogin_required" // 凭据失效，需人工重新登录
	AccountStatusDisabled        = "disabled"         // 外部停用
	AccountStatusStopped         = "stopped"          // 进程退出时落库，重启后可再启动
)

// Account 账号模型
type Account struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	AccountID string             `bson:"account_id"` // 账号标识（唯一，对应 session 文件名）
	Status    string             `bson:"status"`     // 当前状态

	LastGroupCount       int `bson:"last_group_count"`        // 上次同步时所在群数量
	LastActiveGroupCount int `bson:"last_active_group_count"` // 上次同步时被监控群数量

	LastError    string     `bson:"last_error,omitempty"`     // 最近一次错误描述
	LastSyncedAt *time.Time `bson:"last_synced_at,omitempty"` // 最近一次成员关系同步时间

	CreatedAt time.Time `bson:"created_at"` // 创建时间
	UpdatedAt time.Time `bson:"updated_at"` // 更新时间
}

// IsStartable 账号是否处于可启动状态
// 发现轮询只会为这些状态的账号启动 watcher。
// stopped 是正常退出落库的状态，必须可再启动，否则重启后整个账号池停摆。
func (a *Account) IsStartable() bool {
	switch a.Status {
	case AccountStatusPending, AccountStatusActive, AccountStatusConnecting, AccountStatusStopped:
		return true
	default:
		return false
	}
}

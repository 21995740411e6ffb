package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WatchedGroup 被监控群模型
// Role 为 destination 的群是固定转发目的地，永远不作为消息来源。
type WatchedGroup struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	GroupID   int64              `bson:"group_id"`           // Telegram Chat ID（唯一）
	Name      string             `bson:"name"`               // 群名称
	Username  string             `bson:"username,omitempty"` // 公开群的 @username
	Role      string             `bson:"role"`               // 角色：source/destination
	CreatedAt time.Time          `bson:"created_at"`         // 创建时间
	UpdatedAt time.Time          `bson:"updated_at"`         // 更新时间
}

// 群角色常量
const (
	GroupRoleSource      = "source"      // 消息来源群
	GroupRoleDestination = "destination" // 转发目的群（不参与扫描）
)

// IsSource 是否参与来源扫描
func (g *WatchedGroup) IsSource() bool {
	return g.Role != GroupRoleDestination
}

// Membership 账号-群成员关系
type Membership struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	AccountID   string             `bson:"account_id"`    // 账号 ID
	GroupID     int64              `bson:"group_id"`      // 群 Chat ID
	Title       string             `bson:"title"`         // 发现时的群名称
	FirstSeenAt time.Time          `bson:"first_seen_at"` // 首次发现时间
}

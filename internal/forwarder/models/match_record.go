package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchRecord 命中审计记录
// 旁路落库：记录失败不影响转发主路径。48 小时后由 TTL 索引自动删除。
type MatchRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TaskID    string             `bson:"task_id"`    // 任务ID (UUID)
	AccountID string             `bson:"account_id"` // 命中该消息的账号
	ChatID    int64              `bson:"chat_id"`    // 来源聊天 ID
	MessageID int64              `bson:"message_id"` // 来源消息 ID
	Keyword   string             `bson:"keyword"`    // 命中的关键词
	Status    string             `bson:"status"`     // matched/sent/failed
	CreatedAt time.Time          `bson:"created_at"` // 创建时间（TTL索引）
}

const (
	MatchStatusMatched = "matched" // 已命中，尚未投递
	MatchStatusSent    = "sent"    // 已成功投递
	MatchStatusFailed  = "failed"  // 投递终态失败
)

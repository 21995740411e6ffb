package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keyword 关键词模型
// 匹配始终使用小写形式；Keyword 字段入库前已归一化。
type Keyword struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Keyword   string             `bson:"keyword"`    // 小写关键词
	CreatedAt time.Time          `bson:"created_at"` // 创建时间
}

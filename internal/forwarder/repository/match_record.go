package repository

import (
	"context"
	"fmt"

	"forward_bot/internal/forwarder/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMatchRecordRepository 命中审计记录数据访问层
type MongoMatchRecordRepository struct {
	collection *mongo.Collection
}

// NewMatchRecordRepository 创建审计记录 Repository
func NewMatchRecordRepository(db *mongo.Database) *MongoMatchRecordRepository {
	return &MongoMatchRecordRepository{
		collection: db.Collection("match_records"),
	}
}

// Create 写入一条命中记录
func (r *MongoMatchRecordRepository) Create(ctx context.Context, record *models.MatchRecord) error {
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create match record: %w", err)
	}
	return nil
}

// UpdateStatus 更新投递结果
func (r *MongoMatchRecordRepository) UpdateStatus(ctx context.Context, taskID, status string) error {
	filter := bson.M{"task_id": taskID}
	update := bson.M{"$set": bson.M{"status": status}}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update match record: %w", err)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoMatchRecordRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "task_id", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "message_id", Value: 1},
			},
		},
		{
			// TTL 索引（48小时自动删除）
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(48 * 3600),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

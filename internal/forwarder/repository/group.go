package repository

import (
	"context"
	"fmt"
	"time"

	"forward_bot/internal/forwarder/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoGroupRepository 被监控群数据访问层
type MongoGroupRepository struct {
	collection *mongo.Collection
}

// NewGroupRepository 创建群组 Repository
func NewGroupRepository(db *mongo.Database) *MongoGroupRepository {
	return &MongoGroupRepository{
		collection: db.Collection("watched_groups"),
	}
}

// ListSources 列出全部来源群（不含目的群）
func (r *MongoGroupRepository) ListSources(ctx context.Context) ([]*models.WatchedGroup, error) {
	filter := bson.M{"role": bson.M{"$ne": models.GroupRoleDestination}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list source groups: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []*models.WatchedGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	return groups, nil
}

// Register 登记群（已存在则更新名称；角色只在首次写入时设置）
func (r *MongoGroupRepository) Register(ctx context.Context, group *models.WatchedGroup) error {
	now := time.Now()
	role := group.Role
	if role == "" {
		role = models.GroupRoleSource
	}

	filter := bson.M{"group_id": group.GroupID}
	update := bson.M{
		"$set": bson.M{
			"name":       group.Name,
			"username":   group.Username,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"group_id":   group.GroupID,
			"role":       role,
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to register group: %w", err)
	}

	return nil
}

// GetByGroupID 根据 Chat ID 获取群
func (r *MongoGroupRepository) GetByGroupID(ctx context.Context, groupID int64) (*models.WatchedGroup, error) {
	var group models.WatchedGroup
	err := r.collection.FindOne(ctx, bson.M{"group_id": groupID}).Decode(&group)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("group not found: %d", groupID)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoGroupRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

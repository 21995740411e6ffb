package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forward_bot/internal/forwarder/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoKeywordRepository 关键词数据访问层
type MongoKeywordRepository struct {
	collection *mongo.Collection
}

// NewKeywordRepository 创建关键词 Repository
func NewKeywordRepository(db *mongo.Database) *MongoKeywordRepository {
	return &MongoKeywordRepository{
		collection: db.Collection("keywords"),
	}
}

// List 按创建顺序列出全部关键词
func (r *MongoKeywordRepository) List(ctx context.Context) ([]*models.Keyword, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer cursor.Close(ctx)

	var keywords []*models.Keyword
	if err := cursor.All(ctx, &keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}

	return keywords, nil
}

// Upsert 创建关键词（已存在则忽略，入库前统一转小写）
func (r *MongoKeywordRepository) Upsert(ctx context.Context, keyword string) error {
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	if normalized == "" {
		return fmt.Errorf("keyword cannot be empty")
	}

	filter := bson.M{"keyword": normalized}
	update := bson.M{
		"$setOnInsert": bson.M{
			"keyword":    normalized,
			"created_at": time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert keyword: %w", err)
	}

	return nil
}

// Delete 删除关键词
func (r *MongoKeywordRepository) Delete(ctx context.Context, keyword string) error {
	normalized := strings.ToLower(strings.TrimSpace(keyword))

	result, err := r.collection.DeleteOne(ctx, bson.M{"keyword": normalized})
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("keyword not found: %s", normalized)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoKeywordRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "keyword", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"

	"forward_bot/internal/forwarder/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMembershipRepository 账号-群成员关系数据访问层
type MongoMembershipRepository struct {
	collection *mongo.Collection
}

// NewMembershipRepository 创建成员关系 Repository
func NewMembershipRepository(db *mongo.Database) *MongoMembershipRepository {
	return &MongoMembershipRepository{
		collection: db.Collection("account_memberships"),
	}
}

// ListByAccount 列出账号已知的全部成员关系
func (r *MongoMembershipRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Membership, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"account_id": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer cursor.Close(ctx)

	var memberships []*models.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}

	return memberships, nil
}

// InsertNew 批量写入新发现的成员关系
func (r *MongoMembershipRepository) InsertNew(ctx context.Context, memberships []*models.Membership) error {
	if len(memberships) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(memberships))
	for _, m := range memberships {
		docs = append(docs, m)
	}

	// 无序插入：个别重复键冲突不阻塞其余文档
	opts := options.InsertMany().SetOrdered(false)
	if _, err := r.collection.InsertMany(ctx, docs, opts); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to insert memberships: %w", err)
		}
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoMembershipRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "group_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

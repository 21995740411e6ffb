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

// MongoAccountRepository 账号数据访问层
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewAccountRepository 创建账号 Repository
func NewAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection("accounts"),
	}
}

// ListStartable 列出处于可启动状态的账号
func (r *MongoAccountRepository) ListStartable(ctx context.Context) ([]*models.Account, error) {
	filter := bson.M{"status": bson.M{"$in": []string{
		models.AccountStatusPending,
		models.AccountStatusConnecting,
		models.AccountStatusActive,
		models.AccountStatusStopped,
	}}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list startable accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}

	return accounts, nil
}

// GetByAccountID 根据账号 ID 获取账号
func (r *MongoAccountRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("account not found: %s", accountID)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// UpdateStatus 更新账号状态（lastErr 为空时清除错误描述）
func (r *MongoAccountRepository) UpdateStatus(ctx context.Context, accountID, status, lastErr string) error {
	now := time.Now()
	setFields := bson.M{
		"status":     status,
		"updated_at": now,
	}

	update := bson.M{"$set": setFields}
	if lastErr != "" {
		setFields["last_error"] = lastErr
	} else {
		update["$unset"] = bson.M{"last_error": ""}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"account_id": accountID}, update)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}

	return nil
}

// UpdateSyncStats 更新成员关系同步统计
func (r *MongoAccountRepository) UpdateSyncStats(ctx context.Context, accountID string, groupCount, activeGroupCount int) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"last_group_count":        groupCount,
			"last_active_group_count": activeGroupCount,
			"last_synced_at":          now,
			"updated_at":              now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"account_id": accountID}, update)
	if err != nil {
		return fmt.Errorf("failed to update sync stats: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

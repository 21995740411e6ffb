package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"forward_bot/internal/forwarder/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func accountNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func TestMongoAccountRepositoryListStartable(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoAccountRepository{collection: mt.Coll}
		now := time.Now().UTC().Truncate(time.Second)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, accountNamespace(mt), mtest.FirstBatch,
			bson.D{
				{Key: "account_id", Value: "acc-1"},
				{Key: "status", Value: models.AccountStatusPending},
				{Key: "created_at", Value: now},
				{Key: "updated_at", Value: now},
			},
		))

		accounts, err := repo.ListStartable(context.Background())
		if err != nil {
			t.Fatalf("ListStartable failed: %v", err)
		}
		if len(accounts) != 1 || accounts[0].AccountID != "acc-1" {
			t.Fatalf("unexpected accounts: %+v", accounts)
		}
		if !accounts[0].IsStartable() {
			t.Fatalf("expected account to be startable")
		}
	})
}

func TestMongoAccountRepositoryUpdateStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoAccountRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.UpdateStatus(context.Background(), "acc-1", models.AccountStatusReloginRequired, "session revoked")
		if err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
	})

	mt.Run("account missing", func(mt *mtest.T) {
		repo := &MongoAccountRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.UpdateStatus(context.Background(), "ghost", models.AccountStatusActive, "")
		if err == nil || !strings.Contains(err.Error(), "account not found") {
			t.Fatalf("expected not found error, got %v", err)
		}
	})

	mt.Run("update error", func(mt *mtest.T) {
		repo := &MongoAccountRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    123,
			Name:    "WriteError",
			Message: "mock write failure",
		}))

		err := repo.UpdateStatus(context.Background(), "acc-1", models.AccountStatusError, "boom")
		if err == nil || !strings.Contains(err.Error(), "failed to update account status") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

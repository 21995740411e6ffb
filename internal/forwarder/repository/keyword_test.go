package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func keywordNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func TestMongoKeywordRepositoryList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success preserves order", func(mt *mtest.T) {
		repo := &MongoKeywordRepository{collection: mt.Coll}
		now := time.Now().UTC().Truncate(time.Second)

		first := mtest.CreateCursorResponse(1, keywordNamespace(mt), mtest.FirstBatch,
			bson.D{
				{Key: "keyword", Value: "buyurtma"},
				{Key: "created_at", Value: now},
			},
		)
		second := mtest.CreateCursorResponse(0, keywordNamespace(mt), mtest.NextBatch,
			bson.D{
				{Key: "keyword", Value: "taxi"},
				{Key: "created_at", Value: now.Add(time.Minute)},
			},
		)
		mt.AddMockResponses(first, second)

		keywords, err := repo.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(keywords) != 2 {
			t.Fatalf("unexpected keyword count: %d", len(keywords))
		}
		if keywords[0].Keyword != "buyurtma" || keywords[1].Keyword != "taxi" {
			t.Fatalf("unexpected order: %q, %q", keywords[0].Keyword, keywords[1].Keyword)
		}
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := &MongoKeywordRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "mock find failure",
		}))

		if _, err := repo.List(context.Background()); err == nil {
			t.Fatalf("expected error but got nil")
		}
	})
}

func TestMongoKeywordRepositoryUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoKeywordRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		if err := repo.Upsert(context.Background(), "  Taxi "); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	})

	mt.Run("rejects empty keyword", func(mt *mtest.T) {
		repo := &MongoKeywordRepository{collection: mt.Coll}

		err := repo.Upsert(context.Background(), "   ")
		if err == nil || !strings.Contains(err.Error(), "cannot be empty") {
			t.Fatalf("expected empty keyword error, got %v", err)
		}
	})
}

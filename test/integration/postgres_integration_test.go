package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/model"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/pkg/database"
	"euno-analytics-be/pkg/schema"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositories(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDB("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.DataSource{}, &model.Conversation{}, &model.Message{}))

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(db)

	user := &entity.User{Email: uuid.NewString() + "@example.com", SubscriptionTier: "professional", SubscriptionStatus: "active"}
	require.NoError(t, uowFactory.NewUnitOfWork(ctx).UserRepository().Create(ctx, user))

	t.Run("data source profile survives a round trip", func(t *testing.T) {
		rs := schema.ResultSet{
			Columns: []string{"product", "sales"},
			Rows:    []schema.Row{{"product": "Widget", "sales": 1200.0}, {"product": "Gadget", "sales": 300.0}},
		}
		ds := &entity.DataSource{
			UserId:        user.Id,
			Name:          "sales.csv",
			SourceKind:    entity.SourceKindFile,
			RowCount:      len(rs.Rows),
			SchemaProfile: schema.Profile(rs),
			Columns:       rs.Columns,
			SampleRows:    rs.Rows,
		}
		repo := uowFactory.NewUnitOfWork(ctx).DataSourceRepository()
		require.NoError(t, repo.Create(ctx, ds))

		got, err := repo.FindOne(ctx, specification.ByID{ID: ds.Id}, specification.UserOwnedBy{UserID: user.Id})
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.SchemaProfile, 2)
		assert.Equal(t, schema.TypeNumeric, got.SchemaProfile[1].Type)
		assert.Len(t, got.SampleRows, 2)
	})

	t.Run("messages append in order inside one transaction", func(t *testing.T) {
		uow := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		conv := &entity.Conversation{UserId: user.Id, Title: "Sales"}
		require.NoError(t, uow.ConversationRepository().Create(ctx, conv))
		for _, role := range []string{"user", "assistant"} {
			require.NoError(t, uow.MessageRepository().Append(ctx, &entity.Message{ConversationId: conv.Id, Role: role, Content: role}))
		}
		require.NoError(t, uow.Commit())

		msgs, err := uowFactory.NewUnitOfWork(ctx).MessageRepository().FindLatest(ctx, conv.Id, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, 1, msgs[0].Seq)
		assert.Equal(t, "assistant", msgs[1].Role)

		require.NoError(t, uowFactory.NewUnitOfWork(ctx).ConversationRepository().Delete(ctx, conv.Id))
		count, err := uowFactory.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conv.Id})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

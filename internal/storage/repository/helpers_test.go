package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/remnashop/internal/lib/currency"
	"github.com/magabrotheeeer/remnashop/internal/migrations"
	"github.com/magabrotheeeer/remnashop/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, CheckDatabaseReady(ctx, storage))

	return storage
}

func testPlan(name, tag string) models.Plan {
	return models.Plan{
		IsActive:             true,
		Name:                 name,
		Tag:                  tag,
		Type:                 models.PlanTypeBoth,
		Availability:         models.AvailabilityAll,
		TrafficLimit:         100,
		DeviceLimit:          3,
		TrafficLimitStrategy: models.StrategyMonth,
		InternalSquads:       []string{"sq-1", "sq-2"},
		Durations: []models.PlanDuration{
			{Days: 30, Prices: []models.PlanPrice{{Currency: currency.RUB, Amount: decimal.NewFromInt(300)}}},
		},
	}
}

func createUser(t *testing.T, s *Storage, telegramID int64) models.User {
	t.Helper()
	u := models.User{TelegramID: telegramID, Username: "user", Name: "User", Balance: decimal.Zero}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createSubscription(t *testing.T, s *Storage, telegramID int64, plan models.Plan, status models.SubscriptionStatus) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		UserTelegramID: telegramID,
		UserRemnaID:    "remna-uuid",
		Status:         status,
		ExpireAt:       time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second),
		URL:            "https://sub.example.com/abc123",
	}
	sub.ApplySnapshot(models.NewPlanSnapshot(plan, 30))
	id, err := s.CreateSubscription(context.Background(), sub)
	require.NoError(t, err)
	sub.ID = id
	return sub
}

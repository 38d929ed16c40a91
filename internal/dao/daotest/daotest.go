// Package daotest opens a throwaway in-memory store for tests.
package daotest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

// OpenDB returns a private in-memory sqlite database with the payment tables migrated.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection: the memory db lives as long as it does, and writers serialize
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&mxm.Order{}, &mxm.Payment{}, &mxm.Refund{}, &mxm.WebhookEvent{}))
	return db
}

// NewRepository is OpenDB wrapped in the gorm repository.
func NewRepository(t testing.TB) *dao.GormRepository {
	t.Helper()
	return dao.NewGormRepository(OpenDB(t))
}

// SeedOrder inserts a pending order and returns it.
func SeedOrder(t testing.TB, repo dao.Repository, id, number string, total int64, route mxm.PaymentRoute) *mxm.Order {
	t.Helper()
	o := &mxm.Order{
		ID:            id,
		OrderNumber:   number,
		TotalAmount:   total,
		Currency:      "INR",
		PaymentRoute:  route,
		PaymentStatus: mxm.OrderPaymentPending,
	}
	require.NoError(t, repo.CreateOrder(t.Context(), o))
	return o
}

package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	paymentLogs := `
CREATE TABLE IF NOT EXISTS payment_logs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  institute_id TEXT NOT NULL,
  user_plan_id TEXT,
  vendor TEXT NOT NULL,
  vendor_id TEXT,
  status TEXT NOT NULL DEFAULT 'INITIATED',
  payment_status TEXT,
  payment_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  payment_specific_data TEXT,
  tracking_id TEXT,
  tracking_source TEXT,
  order_status TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(paymentLogs).Error)
	return db
}

func newLedgerEntry(t *testing.T, db *gorm.DB, createdAt time.Time, mutate func(*models.PaymentLog)) *models.PaymentLog {
	t.Helper()

	entry := &models.PaymentLog{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		InstituteID:   uuid.New(),
		Vendor:        enums.GatewayCashfree,
		Status:        enums.PaymentLogStatusInitiated,
		PaymentAmount: decimal.NewFromInt(499),
		Currency:      "INR",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if mutate != nil {
		mutate(entry)
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestFindByIDReturnsNilWhenMissing(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	entry, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestFindByOrderIDMatchesSpecificData(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	orderID := "order_" + uuid.NewString()
	want := newLedgerEntry(t, db, now, func(e *models.PaymentLog) {
		e.PaymentSpecificData = json.RawMessage(`{"orderId":"` + orderID + `"}`)
	})
	newLedgerEntry(t, db, now, func(e *models.PaymentLog) {
		e.PaymentSpecificData = json.RawMessage(`{"orderId":"order_other"}`)
	})

	got, err := repo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)

	missing, err := repo.FindByOrderID(context.Background(), "order_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindByOrderID(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestUpdateStatusFieldsLeavesImmutableColumnsAlone(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	entry := newLedgerEntry(t, db, now, nil)
	originalAmount := entry.PaymentAmount

	paid := enums.PaymentStatusPaid
	vendorID := "cf_123"
	orderStatus := "SUCCESS"
	entry.Status = enums.PaymentLogStatusProcessed
	entry.PaymentStatus = &paid
	entry.VendorID = &vendorID
	entry.OrderStatus = &orderStatus
	entry.PaymentSpecificData = json.RawMessage(`{"orderId":"o1"}`)
	entry.PaymentAmount = decimal.NewFromInt(1)

	require.NoError(t, repo.UpdateStatusFields(context.Background(), entry))

	got, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.PaymentLogStatusProcessed, got.Status)
	require.NotNil(t, got.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusPaid, *got.PaymentStatus)
	require.NotNil(t, got.VendorID)
	assert.Equal(t, vendorID, *got.VendorID)
	assert.True(t, originalAmount.Equal(got.PaymentAmount))
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	base := time.Now().UTC().Add(-time.Hour)

	instituteID := uuid.New()
	paid := enums.PaymentStatusPaid
	for i := 0; i < 3; i++ {
		newLedgerEntry(t, db, base.Add(time.Duration(i)*time.Minute), func(e *models.PaymentLog) {
			e.InstituteID = instituteID
			e.PaymentStatus = &paid
		})
	}
	failed := enums.PaymentStatusFailed
	newLedgerEntry(t, db, base, func(e *models.PaymentLog) {
		e.InstituteID = instituteID
		e.PaymentStatus = &failed
	})
	newLedgerEntry(t, db, base, func(e *models.PaymentLog) {
		e.PaymentStatus = &paid
	})

	entries, cursor, err := repo.List(context.Background(), ListQuery{
		InstituteID:   &instituteID,
		PaymentStatus: &paid,
		Limit:         2,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, cursor)

	rest, next, err := repo.List(context.Background(), ListQuery{
		InstituteID:   &instituteID,
		PaymentStatus: &paid,
		Limit:         2,
		Cursor:        cursor,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
}

func TestListStaleInitiatedSkipsProcessedRows(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	stale := newLedgerEntry(t, db, now.Add(-48*time.Hour), nil)
	newLedgerEntry(t, db, now.Add(-48*time.Hour), func(e *models.PaymentLog) {
		e.Status = enums.PaymentLogStatusProcessed
	})
	newLedgerEntry(t, db, now, nil)

	entries, err := repo.ListStaleInitiated(context.Background(), now.Add(-24*time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stale.ID, entries[0].ID)
}

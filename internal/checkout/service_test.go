package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/internal/referrals"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	dbtypes "github.com/shikshalabs/enrollhub-backend/pkg/db/types"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
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
);`, `
CREATE TABLE IF NOT EXISTS user_plans (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  institute_id TEXT NOT NULL,
  enroll_invite_id TEXT NOT NULL,
  payment_option_id TEXT NOT NULL,
  plan_snapshot TEXT,
  source TEXT NOT NULL DEFAULT 'USER',
  sub_org_id TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING_FOR_PAYMENT',
  start_date DATETIME,
  end_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS enroll_invites (
  id TEXT PRIMARY KEY,
  institute_id TEXT NOT NULL,
  name TEXT NOT NULL,
  access_days INTEGER,
  invited_session_id TEXT,
  package_session_ids TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payment_options (
  id TEXT PRIMARY KEY,
  institute_id TEXT NOT NULL,
  type TEXT NOT NULL,
  name TEXT NOT NULL,
  amount NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'INR',
  validity_days INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS learner_session_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  enroll_invite_id TEXT,
  user_plan_id TEXT,
  status TEXT NOT NULL DEFAULT 'INVITED',
  expiry_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_options (
  id TEXT PRIMARY KEY,
  institute_id TEXT NOT NULL,
  name TEXT NOT NULL,
  referrer_benefit TEXT,
  referee_benefit TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_mappings (
  id TEXT PRIMARY KEY,
  institute_id TEXT NOT NULL,
  referrer_user_id TEXT NOT NULL,
  referee_user_id TEXT NOT NULL,
  referral_code TEXT NOT NULL,
  user_plan_id TEXT NOT NULL,
  referral_option_id TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS referral_benefit_logs (
  id TEXT PRIMARY KEY,
  referral_mapping_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  beneficiary TEXT NOT NULL,
  benefit_type TEXT NOT NULL,
  benefit_value TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING',
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type stubStatusApplier struct {
	ids    []uuid.UUID
	inputs []statusproc.ApplyInput
}

func (s *stubStatusApplier) ApplyStatusByLedgerID(_ context.Context, id uuid.UUID, input statusproc.ApplyInput) error {
	s.ids = append(s.ids, id)
	s.inputs = append(s.inputs, input)
	return nil
}

func newTestCheckoutService(t *testing.T, db *gorm.DB, applier *stubStatusApplier) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner := gormTxRunner{db: db}
	emitter := &recordingEmitter{}

	enrollmentSvc, err := enrollment.NewService(enrollment.ServiceParams{
		Repo:   enrollment.NewRepository(db),
		Logger: logg,
	})
	require.NoError(t, err)

	planSvc, err := plans.NewService(plans.ServiceParams{
		DB:      runner,
		Repo:    plans.NewRepository(db),
		Outbox:  emitter,
		Entries: enrollmentSvc,
		Logger:  logg,
	})
	require.NoError(t, err)

	registry, err := referrals.NewHandlerRegistry()
	require.NoError(t, err)
	referralSvc, err := referrals.NewService(referrals.ServiceParams{
		DB:       runner,
		Repo:     referrals.NewRepository(db),
		Outbox:   emitter,
		Handlers: registry,
		Logger:   logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:         runner,
		Ledger:     ledger.NewRepository(db),
		Plans:      planSvc,
		Referrals:  referralSvc,
		Enrollment: enrollmentSvc,
		Status:     applier,
		Logger:     logg,
	})
	require.NoError(t, err)
	return svc
}

func newCheckoutOffer(t *testing.T, db *gorm.DB, optionType enums.PaymentOptionType, amount decimal.Decimal) (*models.EnrollInvite, *models.PaymentOption) {
	t.Helper()

	holdingSession := uuid.New()
	invite := &models.EnrollInvite{
		ID:                uuid.New(),
		InstituteID:       uuid.New(),
		Name:              "Batch 2026",
		InvitedSessionID:  &holdingSession,
		PackageSessionIDs: dbtypes.UUIDArray{uuid.New(), uuid.New()},
		IsActive:          true,
	}
	require.NoError(t, db.Create(invite).Error)

	option := &models.PaymentOption{
		ID:          uuid.New(),
		InstituteID: invite.InstituteID,
		Type:        optionType,
		Name:        "Standard",
		Amount:      amount,
		Currency:    "INR",
	}
	require.NoError(t, db.Create(option).Error)
	return invite, option
}

func baseInput(invite *models.EnrollInvite, option *models.PaymentOption) CreateInput {
	return CreateInput{
		UserID:          uuid.New(),
		InstituteID:     invite.InstituteID,
		EnrollInviteID:  invite.ID,
		PaymentOptionID: option.ID,
		Gateway:         enums.GatewayCashfree,
	}
}

func TestCreateOpensOrderWithPlaceholder(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionOneTime, decimal.NewFromInt(1000))

	result, err := svc.Create(context.Background(), baseInput(invite, option))
	require.NoError(t, err)

	assert.Equal(t, result.PaymentLog.ID.String(), result.OrderID)
	assert.True(t, result.AmountPayable.Equal(decimal.NewFromInt(1000)))
	assert.False(t, result.Activated)
	assert.Empty(t, applier.ids)

	var entry models.PaymentLog
	require.NoError(t, db.Where("id = ?", result.PaymentLog.ID).First(&entry).Error)
	assert.Equal(t, enums.PaymentLogStatusInitiated, entry.Status)
	require.NotNil(t, entry.UserPlanID)
	assert.Equal(t, result.Plan.ID, *entry.UserPlanID)

	var plan models.UserPlan
	require.NoError(t, db.Where("id = ?", result.Plan.ID).First(&plan).Error)
	assert.Equal(t, enums.PlanStatusPendingForPayment, plan.Status)

	snapshot, err := plans.DecodeSnapshot(plan.PlanSnapshot)
	require.NoError(t, err)
	assert.Equal(t, invite.Name, snapshot.InviteName)
	assert.True(t, snapshot.Amount.Equal(option.Amount))

	var placeholder models.LearnerSessionEntry
	require.NoError(t, db.Where("user_plan_id = ?", plan.ID).First(&placeholder).Error)
	assert.Equal(t, enums.EntryStatusInvited, placeholder.Status)
	assert.Equal(t, *invite.InvitedSessionID, placeholder.SessionID)
}

func TestCreateMultiSeatOrderFansOutChildren(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionOneTime, decimal.NewFromInt(500))

	subOrgID := uuid.New()
	input := baseInput(invite, option)
	input.SubOrgID = &subOrgID
	input.ExtraLearnerIDs = []uuid.UUID{uuid.New(), uuid.New()}

	result, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.AmountPayable.Equal(decimal.NewFromInt(1500)))

	data, err := ledger.DecodeSpecificData(result.PaymentLog.PaymentSpecificData)
	require.NoError(t, err)
	require.Len(t, data.ChildPaymentLogIDs, 2)

	var logCount, planCount, placeholderCount int64
	require.NoError(t, db.Model(&models.PaymentLog{}).Count(&logCount).Error)
	require.NoError(t, db.Model(&models.UserPlan{}).Count(&planCount).Error)
	require.NoError(t, db.Model(&models.LearnerSessionEntry{}).Count(&placeholderCount).Error)
	assert.EqualValues(t, 3, logCount)
	assert.EqualValues(t, 3, planCount)
	assert.EqualValues(t, 3, placeholderCount)

	var children []models.PaymentLog
	require.NoError(t, db.Where("id IN ?", []uuid.UUID(data.ChildPaymentLogIDs)).Find(&children).Error)
	for _, child := range children {
		assert.True(t, child.PaymentAmount.Equal(decimal.NewFromInt(500)))
	}

	var childPlans []models.UserPlan
	require.NoError(t, db.Where("id <> ?", result.Plan.ID).Find(&childPlans).Error)
	for _, plan := range childPlans {
		assert.Equal(t, enums.PlanSourceSubOrg, plan.Source)
	}
}

func TestCreateAppliesRefereeDiscount(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionOneTime, decimal.NewFromInt(1000))

	flat := decimal.NewFromInt(200)
	refereeBenefit, err := referrals.BenefitConfig{Type: enums.BenefitFlatDiscount, Amount: &flat}.Encode()
	require.NoError(t, err)
	referralOption := &models.ReferralOption{
		ID:             uuid.New(),
		InstituteID:    invite.InstituteID,
		Name:           "Refer a friend",
		RefereeBenefit: refereeBenefit,
		IsActive:       true,
	}
	require.NoError(t, db.Create(referralOption).Error)

	input := baseInput(invite, option)
	input.Referral = &ReferralInput{
		ReferrerUserID:   uuid.New(),
		ReferralCode:     "FRIEND50",
		ReferralOptionID: referralOption.ID,
	}

	result, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.AmountPayable.Equal(decimal.NewFromInt(800)))
	assert.True(t, result.Discount.Equal(flat))

	var mapping models.ReferralMapping
	require.NoError(t, db.Where("user_plan_id = ?", result.Plan.ID).First(&mapping).Error)
	assert.Equal(t, enums.ReferralStatusPending, mapping.Status)
	assert.Equal(t, input.UserID, mapping.RefereeUserID)
}

func TestCreateFreeOptionSettlesImmediately(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionFree, decimal.Zero)

	result, err := svc.Create(context.Background(), baseInput(invite, option))
	require.NoError(t, err)

	assert.True(t, result.Activated)
	require.Len(t, applier.ids, 1)
	assert.Equal(t, result.PaymentLog.ID, applier.ids[0])
	assert.Equal(t, enums.PaymentStatusPaid, applier.inputs[0].Status)
}

func TestCreateRejectsClosedInvite(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionOneTime, decimal.NewFromInt(1000))
	require.NoError(t, db.Model(&models.EnrollInvite{}).Where("id = ?", invite.ID).Update("is_active", false).Error)

	_, err := svc.Create(context.Background(), baseInput(invite, option))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestCreateValidatesInput(t *testing.T) {
	db := setupCheckoutTestDB(t)
	applier := &stubStatusApplier{}
	svc := newTestCheckoutService(t, db, applier)
	invite, option := newCheckoutOffer(t, db, enums.PaymentOptionOneTime, decimal.NewFromInt(1000))

	input := baseInput(invite, option)
	input.UserID = uuid.Nil

	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	var count int64
	require.NoError(t, db.Model(&models.PaymentLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

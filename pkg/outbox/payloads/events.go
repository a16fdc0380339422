package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// PaymentStatusAppliedEvent carries everything the effects coordinator needs
// to run post-payment side effects for one ledger entry.
type PaymentStatusAppliedEvent struct {
	PaymentLogID uuid.UUID           `json:"paymentLogId"`
	UserID       uuid.UUID           `json:"userId"`
	InstituteID  uuid.UUID           `json:"instituteId"`
	UserPlanID   *uuid.UUID          `json:"userPlanId,omitempty"`
	Status       enums.PaymentStatus `json:"status"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
}

// PaymentConfirmedEvent is the analytics fact for a successful payment.
type PaymentConfirmedEvent struct {
	PaymentLogID uuid.UUID       `json:"paymentLogId"`
	UserID       uuid.UUID       `json:"userId"`
	InstituteID  uuid.UUID       `json:"instituteId"`
	Vendor       string          `json:"vendor"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ConfirmedAt  time.Time       `json:"confirmedAt"`
}

// PaymentFailedEvent is the analytics fact for a failed payment.
type PaymentFailedEvent struct {
	PaymentLogID uuid.UUID       `json:"paymentLogId"`
	UserID       uuid.UUID       `json:"userId"`
	InstituteID  uuid.UUID       `json:"instituteId"`
	Vendor       string          `json:"vendor"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	FailedAt     time.Time       `json:"failedAt"`
}

// PaymentReceiptIssuedEvent acknowledges a settled payment to the payer. The
// transaction reference comes from the stored gateway blob when present.
type PaymentReceiptIssuedEvent struct {
	PaymentLogID  uuid.UUID       `json:"paymentLogId"`
	UserID        uuid.UUID       `json:"userId"`
	InstituteID   uuid.UUID       `json:"instituteId"`
	TransactionID string          `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// PlanActivatedEvent notifies the learner that their enrollment is live.
type PlanActivatedEvent struct {
	UserPlanID     uuid.UUID `json:"userPlanId"`
	UserID         uuid.UUID `json:"userId"`
	EnrollInviteID uuid.UUID `json:"enrollInviteId"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	Stacked        bool      `json:"stacked"`
}

// PlanExpiredEvent is emitted by the expiry sweep for each expired plan.
type PlanExpiredEvent struct {
	UserPlanID     uuid.UUID  `json:"userPlanId"`
	UserID         uuid.UUID  `json:"userId"`
	EnrollInviteID uuid.UUID  `json:"enrollInviteId"`
	ExpiredAt      time.Time  `json:"expiredAt"`
	PromotedPlanID *uuid.UUID `json:"promotedPlanId,omitempty"`
}

// ReferralBenefitGivenEvent reports one delivered referral benefit.
type ReferralBenefitGivenEvent struct {
	ReferralMappingID uuid.UUID         `json:"referralMappingId"`
	BenefitLogID      uuid.UUID         `json:"benefitLogId"`
	UserID            uuid.UUID         `json:"userId"`
	Beneficiary       enums.Beneficiary `json:"beneficiary"`
	BenefitType       enums.BenefitType `json:"benefitType"`
}

// InvoiceGeneratedEvent carries the invoice reference for delivery.
type InvoiceGeneratedEvent struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	UserID        uuid.UUID       `json:"userId"`
	PaymentLogID  uuid.UUID       `json:"paymentLogId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// DonationReceivedEvent acknowledges a plan-less paid ledger entry.
type DonationReceivedEvent struct {
	PaymentLogID uuid.UUID       `json:"paymentLogId"`
	UserID       uuid.UUID       `json:"userId"`
	InstituteID  uuid.UUID       `json:"instituteId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

package enums

// OutboxEventType names an event recorded in the transactional outbox.
type OutboxEventType string

const (
	EventPaymentStatusApplied OutboxEventType = "payment.status.applied"
	EventPaymentConfirmed     OutboxEventType = "payment.confirmed"
	EventPaymentFailed        OutboxEventType = "payment.failed"
	EventPaymentReceiptIssued OutboxEventType = "payment.receipt.issued"
	EventPlanActivated        OutboxEventType = "plan.activated"
	EventPlanExpired          OutboxEventType = "plan.expired"
	EventReferralBenefitGiven OutboxEventType = "referral.benefit.given"
	EventInvoiceGenerated     OutboxEventType = "invoice.generated"
	EventDonationReceived     OutboxEventType = "donation.received"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentStatusApplied,
	EventPaymentConfirmed,
	EventPaymentFailed,
	EventPaymentReceiptIssued,
	EventPlanActivated,
	EventPlanExpired,
	EventReferralBenefitGiven,
	EventInvoiceGenerated,
	EventDonationReceived,
}

func (o OutboxEventType) String() string {
	return string(o)
}

func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePaymentLog OutboxAggregateType = "payment_log"
	AggregateUserPlan   OutboxAggregateType = "user_plan"
	AggregateReferral   OutboxAggregateType = "referral_mapping"
	AggregateInvoice    OutboxAggregateType = "invoice"
)

func (o OutboxAggregateType) String() string {
	return string(o)
}

// DLQReason explains why an outbox event was parked instead of retried.
type DLQReason string

const (
	DLQReasonMaxAttempts  DLQReason = "MAX_ATTEMPTS_EXCEEDED"
	DLQReasonNonRetryable DLQReason = "NON_RETRYABLE"
)

func (d DLQReason) String() string {
	return string(d)
}

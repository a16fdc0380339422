package analytics

import (
	"time"

	"github.com/google/uuid"
)

// PaymentFact is one terminal payment outcome flattened for BigQuery. Amounts
// are carried as strings so numeric precision survives the insert.
type PaymentFact struct {
	PaymentLogID uuid.UUID `bigquery:"payment_log_id"`
	UserID       uuid.UUID `bigquery:"user_id"`
	InstituteID  uuid.UUID `bigquery:"institute_id"`
	Vendor       string    `bigquery:"vendor"`
	Status       string    `bigquery:"status"`
	Amount       string    `bigquery:"amount"`
	Currency     string    `bigquery:"currency"`
	OccurredAt   time.Time `bigquery:"occurred_at"`
	RecordedAt   time.Time `bigquery:"recorded_at"`
}

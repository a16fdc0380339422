package enums

// PaymentLogStatus is the internal lifecycle of a ledger entry.
type PaymentLogStatus string

const (
	PaymentLogStatusInitiated PaymentLogStatus = "INITIATED"
	PaymentLogStatusProcessed PaymentLogStatus = "PROCESSED"
)

var validPaymentLogStatuses = []PaymentLogStatus{
	PaymentLogStatusInitiated,
	PaymentLogStatusProcessed,
}

func (p PaymentLogStatus) String() string {
	return string(p)
}

func (p PaymentLogStatus) IsValid() bool {
	for _, candidate := range validPaymentLogStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

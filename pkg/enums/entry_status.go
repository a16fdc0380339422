package enums

// EntryStatus is the lifecycle of a learner's session membership row.
type EntryStatus string

const (
	EntryStatusInvited       EntryStatus = "INVITED"
	EntryStatusActive        EntryStatus = "ACTIVE"
	EntryStatusPaymentFailed EntryStatus = "PAYMENT_FAILED"
	EntryStatusDeleted       EntryStatus = "DELETED"
)

var validEntryStatuses = []EntryStatus{
	EntryStatusInvited,
	EntryStatusActive,
	EntryStatusPaymentFailed,
	EntryStatusDeleted,
}

func (e EntryStatus) String() string {
	return string(e)
}

func (e EntryStatus) IsValid() bool {
	for _, candidate := range validEntryStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

package enums

// InvoiceStatus is the lifecycle of a generated invoice record.
type InvoiceStatus string

const (
	InvoiceStatusGenerated InvoiceStatus = "GENERATED"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusVoid      InvoiceStatus = "VOID"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusGenerated,
	InvoiceStatusSent,
	InvoiceStatusVoid,
}

func (i InvoiceStatus) String() string {
	return string(i)
}

func (i InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

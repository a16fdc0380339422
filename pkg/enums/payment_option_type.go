package enums

import "fmt"

// PaymentOptionType classifies how an enrollment offer is paid for.
type PaymentOptionType string

const (
	PaymentOptionFree         PaymentOptionType = "FREE"
	PaymentOptionDonation     PaymentOptionType = "DONATION"
	PaymentOptionOneTime      PaymentOptionType = "ONE_TIME"
	PaymentOptionSubscription PaymentOptionType = "SUBSCRIPTION"
)

var validPaymentOptionTypes = []PaymentOptionType{
	PaymentOptionFree,
	PaymentOptionDonation,
	PaymentOptionOneTime,
	PaymentOptionSubscription,
}

func (p PaymentOptionType) String() string {
	return string(p)
}

func (p PaymentOptionType) IsValid() bool {
	for _, candidate := range validPaymentOptionTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresPayment reports whether benefits funded by this option stay
// pending until the gateway confirms the charge.
func (p PaymentOptionType) RequiresPayment() bool {
	return p == PaymentOptionOneTime || p == PaymentOptionSubscription
}

func ParsePaymentOptionType(value string) (PaymentOptionType, error) {
	for _, candidate := range validPaymentOptionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment option type %q", value)
}

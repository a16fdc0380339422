package enums

import "fmt"

// PaymentGateway identifies the vendor that processed a payment attempt.
type PaymentGateway string

const (
	GatewayCashfree PaymentGateway = "CASHFREE"
	GatewayStripe   PaymentGateway = "STRIPE"
	GatewayRazorpay PaymentGateway = "RAZORPAY"
	GatewayPayPal   PaymentGateway = "PAYPAL"
)

var validPaymentGateways = []PaymentGateway{
	GatewayCashfree,
	GatewayStripe,
	GatewayRazorpay,
	GatewayPayPal,
}

func (g PaymentGateway) String() string {
	return string(g)
}

func (g PaymentGateway) IsValid() bool {
	for _, candidate := range validPaymentGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

func ParsePaymentGateway(value string) (PaymentGateway, error) {
	for _, candidate := range validPaymentGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment gateway %q", value)
}

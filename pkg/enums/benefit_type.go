package enums

import "fmt"

// BenefitType is the closed set of referral rewards the platform grants.
type BenefitType string

const (
	BenefitFlatDiscount        BenefitType = "FLAT_DISCOUNT"
	BenefitPercentageDiscount  BenefitType = "PERCENTAGE_DISCOUNT"
	BenefitPoints              BenefitType = "POINTS"
	BenefitContent             BenefitType = "CONTENT"
	BenefitMembershipExtension BenefitType = "MEMBERSHIP_EXTENSION"
)

var validBenefitTypes = []BenefitType{
	BenefitFlatDiscount,
	BenefitPercentageDiscount,
	BenefitPoints,
	BenefitContent,
	BenefitMembershipExtension,
}

func (b BenefitType) String() string {
	return string(b)
}

func (b BenefitType) IsValid() bool {
	for _, candidate := range validBenefitTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsMonetary reports whether the benefit's effect is realized at
// checkout-time pricing rather than through a delivery step.
func (b BenefitType) IsMonetary() bool {
	switch b {
	case BenefitFlatDiscount, BenefitPercentageDiscount, BenefitPoints:
		return true
	default:
		return false
	}
}

func ParseBenefitType(value string) (BenefitType, error) {
	for _, candidate := range validBenefitTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid benefit type %q", value)
}

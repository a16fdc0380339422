package referrals

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// BenefitConfig is the typed view of a referral option's benefit blob. One
// field group is populated per benefit type.
type BenefitConfig struct {
	Type          enums.BenefitType `json:"type"`
	Amount        *decimal.Decimal  `json:"amount,omitempty"`
	Percent       *decimal.Decimal  `json:"percent,omitempty"`
	Points        *int              `json:"points,omitempty"`
	SessionIDs    []uuid.UUID       `json:"sessionIds,omitempty"`
	ExtensionDays *int              `json:"extensionDays,omitempty"`
}

// DecodeBenefitConfig parses a benefit blob. A null column means the side
// receives nothing and decodes to nil.
func DecodeBenefitConfig(raw json.RawMessage) (*BenefitConfig, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var cfg BenefitConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Encode marshals the config for storage on a benefit log row.
func (c BenefitConfig) Encode() (json.RawMessage, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// Discount returns the price reduction this benefit applies at checkout.
// Non-discount benefits reduce nothing.
func (c BenefitConfig) Discount(price decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case enums.BenefitFlatDiscount:
		if c.Amount == nil {
			return decimal.Zero
		}
		if c.Amount.GreaterThan(price) {
			return price
		}
		return *c.Amount
	case enums.BenefitPercentageDiscount:
		if c.Percent == nil {
			return decimal.Zero
		}
		discount := price.Mul(*c.Percent).Div(decimal.NewFromInt(100)).Round(2)
		if discount.GreaterThan(price) {
			return price
		}
		return discount
	default:
		return decimal.Zero
	}
}

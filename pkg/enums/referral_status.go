package enums

// ReferralStatus tracks a referral mapping from creation to confirmation.
type ReferralStatus string

const (
	ReferralStatusPending ReferralStatus = "PENDING"
	ReferralStatusActive  ReferralStatus = "ACTIVE"
)

func (r ReferralStatus) String() string {
	return string(r)
}

func (r ReferralStatus) IsValid() bool {
	return r == ReferralStatusPending || r == ReferralStatusActive
}

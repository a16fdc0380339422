package enums

// BenefitStatus tracks whether a granted benefit has been delivered.
type BenefitStatus string

const (
	BenefitStatusPending BenefitStatus = "PENDING"
	BenefitStatusActive  BenefitStatus = "ACTIVE"
)

func (b BenefitStatus) String() string {
	return string(b)
}

func (b BenefitStatus) IsValid() bool {
	return b == BenefitStatusPending || b == BenefitStatusActive
}

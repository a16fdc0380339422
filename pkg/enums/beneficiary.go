package enums

// Beneficiary names which side of a referral mapping receives a benefit.
type Beneficiary string

const (
	BeneficiaryReferrer Beneficiary = "REFERRER"
	BeneficiaryReferee  Beneficiary = "REFEREE"
)

func (b Beneficiary) String() string {
	return string(b)
}

func (b Beneficiary) IsValid() bool {
	return b == BeneficiaryReferrer || b == BeneficiaryReferee
}

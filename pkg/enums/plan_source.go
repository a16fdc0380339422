package enums

// PlanSource records who funds a plan: the learner directly or a sub-org.
type PlanSource string

const (
	PlanSourceUser   PlanSource = "USER"
	PlanSourceSubOrg PlanSource = "SUB_ORG"
)

func (p PlanSource) String() string {
	return string(p)
}

func (p PlanSource) IsValid() bool {
	return p == PlanSourceUser || p == PlanSourceSubOrg
}

package plans

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Snapshot is the denormalized invite and payment option captured on the plan
// at checkout. Entitlement windows are computed from the snapshot so later
// catalog edits never change what a learner already bought.
type Snapshot struct {
	InviteName   string                  `json:"inviteName,omitempty"`
	AccessDays   *int                    `json:"accessDays,omitempty"`
	ValidityDays *int                    `json:"validityDays,omitempty"`
	OptionType   enums.PaymentOptionType `json:"optionType,omitempty"`
	Amount       decimal.Decimal         `json:"amount"`
	Currency     string                  `json:"currency,omitempty"`
}

// BuildSnapshot captures the catalog state for a new plan.
func BuildSnapshot(invite *models.EnrollInvite, option *models.PaymentOption) Snapshot {
	snapshot := Snapshot{}
	if invite != nil {
		snapshot.InviteName = invite.Name
		snapshot.AccessDays = invite.AccessDays
	}
	if option != nil {
		snapshot.ValidityDays = option.ValidityDays
		snapshot.OptionType = option.Type
		snapshot.Amount = option.Amount
		snapshot.Currency = option.Currency
	}
	return snapshot
}

// DecodeSnapshot parses the stored blob, substituting an empty snapshot when
// the column is null.
func DecodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	var snapshot Snapshot
	if len(raw) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// Encode marshals the snapshot for storage on the plan row.
func (s Snapshot) Encode() (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// WindowDays resolves the entitlement window: the plan's own validity wins,
// the invite's access days are the fallback, defaultDays the floor.
func (s Snapshot) WindowDays(defaultDays int) int {
	if s.ValidityDays != nil && *s.ValidityDays > 0 {
		return *s.ValidityDays
	}
	if s.AccessDays != nil && *s.AccessDays > 0 {
		return *s.AccessDays
	}
	return defaultDays
}

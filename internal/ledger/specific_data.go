package ledger

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SpecificData is the typed view over payment_specific_data. The blob holds
// the original checkout request, the raw gateway response and, for multi-item
// orders, the child ledger entry ids.
type SpecificData struct {
	OrderID            string          `json:"orderId,omitempty"`
	Request            json.RawMessage `json:"request,omitempty"`
	Response           json.RawMessage `json:"response,omitempty"`
	ChildPaymentLogIDs []uuid.UUID     `json:"childPaymentLogIds,omitempty"`
}

// DecodeSpecificData parses the blob, substituting an empty value when the
// stored JSON is missing or corrupt. The returned error reports the
// corruption for logging; the SpecificData is always usable.
func DecodeSpecificData(raw json.RawMessage) (SpecificData, error) {
	var data SpecificData
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return SpecificData{}, err
	}
	return data, nil
}

// Encode marshals the typed view back into the stored blob.
func (d SpecificData) Encode() (json.RawMessage, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// WithResponse returns a copy with the gateway response replaced.
func (d SpecificData) WithResponse(response json.RawMessage) SpecificData {
	d.Response = response
	return d
}

// HasChildren reports whether the entry is a multi-item parent.
func (d SpecificData) HasChildren() bool {
	return len(d.ChildPaymentLogIDs) > 0
}

// gatewayBlob is the subset of the stored request/response blobs the
// accessors read. Unknown fields are ignored.
type gatewayBlob struct {
	TransactionID string           `json:"transactionId"`
	Amount        *decimal.Decimal `json:"amount"`
}

// TransactionID returns the gateway transaction reference, preferring the
// response over the original request and falling back to the order id. A
// corrupt blob counts as missing.
func (d SpecificData) TransactionID() string {
	for _, raw := range []json.RawMessage{d.Response, d.Request} {
		var blob gatewayBlob
		if len(raw) == 0 || json.Unmarshal(raw, &blob) != nil {
			continue
		}
		if blob.TransactionID != "" {
			return blob.TransactionID
		}
	}
	return d.OrderID
}

// Amount returns the amount recorded in the gateway blobs, response first.
// The second return is false when neither blob carries one.
func (d SpecificData) Amount() (decimal.Decimal, bool) {
	for _, raw := range []json.RawMessage{d.Response, d.Request} {
		var blob gatewayBlob
		if len(raw) == 0 || json.Unmarshal(raw, &blob) != nil {
			continue
		}
		if blob.Amount != nil {
			return *blob.Amount, true
		}
	}
	return decimal.Decimal{}, false
}

/*
serial.go - Serialization of list-valued sale fields

PURPOSE:
  The custom-quota list and the redistributed-quota-number list are
  stored as serialized text attributes on the sale row. This file owns
  the wire form and the defensive decoding rules: a malformed or absent
  value is treated as an empty list so a sale with a broken custom
  schedule still resolves through the automatic plan path.

WIRE FORM (JSON):
  custom quotas:        [{"number":1,"amount":"1000000","due_date":"2024-02-29"}]
  redistributed quotas: [1,2]

  Amounts travel as decimal strings to avoid float drift. due_date is
  optional; absent means the calendar rule applies.

ERROR POLICY:
  Decode functions return the parsed list plus a *MalformedFieldError
  when the input was present but unparseable. The returned list is
  always usable (empty on failure); the error is for logging only and
  must never abort the caller.

SEE ALSO:
  - errors.go: MalformedFieldError
  - store/sqlite: Persists these fields
*/
package schedule

import (
	"encoding/json"
	"strings"
)

type customQuotaJSON struct {
	Number  int    `json:"number"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date,omitempty"`
}

// EncodeCustomQuotas serializes a custom-quota list. An empty list
// encodes to the empty string.
func EncodeCustomQuotas(quotas []CustomQuota) string {
	if len(quotas) == 0 {
		return ""
	}
	out := make([]customQuotaJSON, 0, len(quotas))
	for _, q := range quotas {
		cj := customQuotaJSON{Number: q.Number, Amount: q.Amount.String()}
		if q.DueDate != nil {
			cj.DueDate = q.DueDate.String()
		}
		out = append(out, cj)
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// DecodeCustomQuotas parses a serialized custom-quota list. Malformed
// input yields (nil, *MalformedFieldError); absent input yields (nil, nil).
func DecodeCustomQuotas(saleID SaleID, raw string) ([]CustomQuota, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "[]" {
		return nil, nil
	}

	var parsed []customQuotaJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &MalformedFieldError{SaleID: saleID, Field: "custom_quotas", Raw: raw, Err: err}
	}

	quotas := make([]CustomQuota, 0, len(parsed))
	for _, cj := range parsed {
		q := CustomQuota{Number: cj.Number, Amount: ParseMoney(cj.Amount)}
		if cj.DueDate != "" {
			due, err := ParseDate(cj.DueDate)
			if err != nil {
				return nil, &MalformedFieldError{SaleID: saleID, Field: "custom_quotas", Raw: raw, Err: err}
			}
			q.DueDate = &due
		}
		quotas = append(quotas, q)
	}
	return quotas, nil
}

// EncodeQuotaNumbers serializes a redistributed-quota-number list. An
// empty list encodes to the empty string.
func EncodeQuotaNumbers(numbers []int) string {
	if len(numbers) == 0 {
		return ""
	}
	b, _ := json.Marshal(numbers)
	return string(b)
}

// DecodeQuotaNumbers parses a serialized quota-number list with the same
// defensive policy as DecodeCustomQuotas.
func DecodeQuotaNumbers(saleID SaleID, raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "[]" {
		return nil, nil
	}

	var numbers []int
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil, &MalformedFieldError{SaleID: saleID, Field: "redistributed_quotas", Raw: raw, Err: err}
	}
	return numbers, nil
}

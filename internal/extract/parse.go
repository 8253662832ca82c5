// parse.go - Schema-constrained parsing of the model's raw response

package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pakorn/invoice_extract_ai/internal/common"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
)

// Payload mirrors the declared schema with every field as a pointer so a
// missing required field is distinguishable from a zero value. Required
// fields are never defaulted: a payload that fails validation never
// becomes a record.
type partyPayload struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	TaxID   *string `json:"taxId"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
}

type itemPayload struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	Amount      *float64 `json:"amount"`
}

type recordPayload struct {
	InvoiceNumber *string        `json:"invoiceNumber"`
	InvoiceDate   *string        `json:"invoiceDate"`
	DueDate       *string        `json:"dueDate"`
	Vendor        *partyPayload  `json:"vendor"`
	Customer      *partyPayload  `json:"customer"`
	Subtotal      *float64       `json:"subtotal"`
	TaxAmount     *float64       `json:"taxAmount"`
	TaxRate       *float64       `json:"taxRate"`
	Discount      *float64       `json:"discount"`
	Total         *float64       `json:"total"`
	Currency      *string        `json:"currency"`
	Items         *[]itemPayload `json:"items"`
	PaymentTerms  *string        `json:"paymentTerms"`
	Notes         *string        `json:"notes"`
	PaymentStatus *string        `json:"paymentStatus"`
}

// extractJSON isolates the outermost JSON object in the model response.
// Models occasionally wrap output in markdown fences or add prose around
// it despite the instructions.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseRecord validates the model's raw text response against the invoice
// schema and builds the record. Any violation - missing required field,
// wrong type, invalid enum value - is reported as an extraction parse
// error carrying the raw output; nothing is coerced.
//
// The returned record has no confidence or timestamp yet; the orchestrator
// stamps those.
func ParseRecord(raw string) (*invoice.Record, error) {
	jsonText, ok := extractJSON(raw)
	if !ok {
		return nil, common.NewParseError("no JSON object found in model response", raw, nil)
	}

	var payload recordPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, common.NewParseError("model response is not valid JSON for the invoice schema", raw,
			[]string{err.Error()})
	}

	var violations []string
	missing := func(field string, ok bool) bool {
		if !ok {
			violations = append(violations, fmt.Sprintf("missing required field %q", field))
		}
		return ok
	}

	missing("invoiceNumber", payload.InvoiceNumber != nil)
	missing("invoiceDate", payload.InvoiceDate != nil)
	missing("subtotal", payload.Subtotal != nil)
	missing("total", payload.Total != nil)
	missing("currency", payload.Currency != nil)
	if missing("vendor", payload.Vendor != nil) {
		missing("vendor.name", payload.Vendor.Name != nil)
	}
	if missing("customer", payload.Customer != nil) {
		missing("customer.name", payload.Customer.Name != nil)
	}

	var items []invoice.LineItem
	if missing("items", payload.Items != nil) {
		items = make([]invoice.LineItem, 0, len(*payload.Items))
		for i, it := range *payload.Items {
			ok := missing(fmt.Sprintf("items[%d].description", i), it.Description != nil)
			ok = missing(fmt.Sprintf("items[%d].quantity", i), it.Quantity != nil) && ok
			ok = missing(fmt.Sprintf("items[%d].unitPrice", i), it.UnitPrice != nil) && ok
			ok = missing(fmt.Sprintf("items[%d].amount", i), it.Amount != nil) && ok
			if ok {
				// Amount is taken as read; quantity*unitPrice is not
				// recomputed or enforced here
				items = append(items, invoice.LineItem{
					Description: *it.Description,
					Quantity:    *it.Quantity,
					UnitPrice:   *it.UnitPrice,
					Amount:      *it.Amount,
				})
			}
		}
	}

	var status *invoice.PaymentStatus
	if payload.PaymentStatus != nil {
		s := invoice.PaymentStatus(*payload.PaymentStatus)
		if !invoice.ValidStatus(s) {
			violations = append(violations,
				fmt.Sprintf("paymentStatus %q is not one of paid, unpaid, partial", s))
		} else {
			status = &s
		}
	}

	if len(violations) > 0 {
		return nil, common.NewParseError("model response failed schema validation", raw, violations)
	}

	rec := &invoice.Record{
		InvoiceNumber: *payload.InvoiceNumber,
		InvoiceDate:   *payload.InvoiceDate,
		DueDate:       payload.DueDate,
		Vendor:        buildParty(payload.Vendor),
		Customer:      buildParty(payload.Customer),
		Subtotal:      *payload.Subtotal,
		TaxAmount:     payload.TaxAmount,
		TaxRate:       payload.TaxRate,
		Discount:      payload.Discount,
		Total:         *payload.Total,
		Currency:      *payload.Currency,
		Items:         items,
		PaymentTerms:  payload.PaymentTerms,
		Notes:         payload.Notes,
		PaymentStatus: status,
	}
	return rec, nil
}

func buildParty(p *partyPayload) invoice.Party {
	return invoice.Party{
		Name:    *p.Name,
		Address: p.Address,
		TaxID:   p.TaxID,
		Email:   p.Email,
		Phone:   p.Phone,
	}
}

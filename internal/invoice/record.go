// record.go - The structured invoice record produced by an extraction

package invoice

import "time"

// PaymentStatus is the closed enumeration for an invoice's payment state.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
)

// ValidStatus reports whether s is one of the allowed payment states.
func ValidStatus(s PaymentStatus) bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusPartial:
		return true
	}
	return false
}

// Party holds vendor or customer details. Only the name is required.
type Party struct {
	Name    string  `json:"name" bson:"name"`
	Address *string `json:"address" bson:"address,omitempty"`
	TaxID   *string `json:"taxId" bson:"tax_id,omitempty"`
	Email   *string `json:"email" bson:"email,omitempty"`
	Phone   *string `json:"phone" bson:"phone,omitempty"`
}

// LineItem is one row of the invoice. Amount SHOULD equal
// Quantity*UnitPrice but is taken from the document as read and never
// recomputed; consumers that need the arithmetic to hold must verify it
// themselves.
type LineItem struct {
	Description string  `json:"description" bson:"description"`
	Quantity    float64 `json:"quantity" bson:"quantity"`
	UnitPrice   float64 `json:"unitPrice" bson:"unit_price"`
	Amount      float64 `json:"amount" bson:"amount"`
}

// Record is the final structured output of one extraction call. It is
// built once, never mutated afterwards, and owned by the caller. Optional
// fields are nil when the document does not carry them.
type Record struct {
	// Invoice header
	InvoiceNumber string  `json:"invoiceNumber" bson:"invoice_number"`
	InvoiceDate   string  `json:"invoiceDate" bson:"invoice_date"`
	DueDate       *string `json:"dueDate" bson:"due_date,omitempty"`

	// Parties
	Vendor   Party `json:"vendor" bson:"vendor"`
	Customer Party `json:"customer" bson:"customer"`

	// Financials
	Subtotal  float64  `json:"subtotal" bson:"subtotal"`
	TaxAmount *float64 `json:"taxAmount" bson:"tax_amount,omitempty"`
	TaxRate   *float64 `json:"taxRate" bson:"tax_rate,omitempty"`
	Discount  *float64 `json:"discount" bson:"discount,omitempty"`
	Total     float64  `json:"total" bson:"total"`
	Currency  string   `json:"currency" bson:"currency"`

	// Line items, in document order
	Items []LineItem `json:"items" bson:"items"`

	// Additional information
	PaymentTerms  *string        `json:"paymentTerms" bson:"payment_terms,omitempty"`
	Notes         *string        `json:"notes" bson:"notes,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus" bson:"payment_status,omitempty"`

	// Extraction metadata, always present
	Confidence  float64   `json:"confidence" bson:"confidence"`
	ExtractedAt time.Time `json:"extractedAt" bson:"extracted_at"`
}

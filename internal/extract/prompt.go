// prompt.go - Extraction prompt and schema format instructions

package extract

import "fmt"

// formatInstructions is the machine-readable description of the invoice
// schema handed to the model: field names, types, which fields may be
// null, and the closed payment status enumeration. The response parser
// enforces exactly this contract.
const formatInstructions = `Respond with a single JSON object that conforms to the schema below.
Every property must be present; properties marked nullable must be null when
the information is not in the text. Do not invent values. Do not wrap the
JSON in markdown code fences and do not add any text before or after it.

Schema:
{
  "invoiceNumber": string,              // required
  "invoiceDate": string,                // required
  "dueDate": string | null,
  "vendor": {
    "name": string,                     // required
    "address": string | null,
    "taxId": string | null,
    "email": string | null,
    "phone": string | null
  },
  "customer": {
    "name": string,                     // required
    "address": string | null,
    "taxId": string | null,
    "email": string | null,
    "phone": string | null
  },
  "subtotal": number,                   // required
  "taxAmount": number | null,
  "taxRate": number | null,
  "discount": number | null,
  "total": number,                      // required
  "currency": string,                   // required, e.g. "USD"
  "items": [                            // required, may be empty
    {
      "description": string,            // required
      "quantity": number,               // required
      "unitPrice": number,              // required
      "amount": number                  // required
    }
  ],
  "paymentTerms": string | null,
  "notes": string | null,
  "paymentStatus": "paid" | "unpaid" | "partial" | null
}`

// BuildPrompt assembles the single extraction prompt: the instruction
// preamble, the format instructions derived from the invoice schema, and
// the recognized invoice text.
func BuildPrompt(text string) string {
	return fmt.Sprintf(`You are an expert at extracting structured data from invoice text.
Analyze the following text extracted from an invoice and extract the
information in a structured format. If a field is not present in the text,
mark it as null.

%s

Extracted Invoice Text:
%s`, formatInstructions, text)
}

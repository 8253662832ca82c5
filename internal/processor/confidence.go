// confidence.go - Confidence scoring policies
//
// The default policy stamps a fixed configured constant on every
// successful extraction. The formula is external to the pipeline, so it is
// exposed as a pluggable function; WeightedConfidence is an optional
// alternative that scores the record itself.

package processor

import (
	"math"
	"strings"
	"time"

	"github.com/pakorn/invoice_extract_ai/internal/invoice"
)

// ScoreFunc computes the confidence stamped on a successful extraction,
// from the recognized text and the validated record. The result must be in
// [0,1].
type ScoreFunc func(ocrText string, rec *invoice.Record) float64

// FixedConfidence returns a ScoreFunc that always reports the given
// constant, clamped to [0,1]. This is the default policy.
func FixedConfidence(score float64) ScoreFunc {
	score = clamp01(score)
	return func(string, *invoice.Record) float64 {
		return score
	}
}

// ConfidenceWeights holds the weight of each scoring factor. The weights
// must sum to 1.0.
type ConfidenceWeights struct {
	DataCompleteness  float64
	FieldValidation   float64
	BalanceValidation float64
}

// DefaultWeights are the standard weights used by WeightedConfidence.
var DefaultWeights = ConfidenceWeights{
	DataCompleteness:  0.40,
	FieldValidation:   0.30,
	BalanceValidation: 0.30,
}

// WeightedConfidence returns a ScoreFunc that weighs data completeness,
// field plausibility and arithmetic consistency of the record.
func WeightedConfidence(weights ConfidenceWeights) ScoreFunc {
	return func(ocrText string, rec *invoice.Record) float64 {
		if rec == nil {
			return 0
		}
		score := completenessScore(rec)*weights.DataCompleteness +
			fieldValidationScore(rec)*weights.FieldValidation +
			balanceScore(rec)*weights.BalanceValidation
		return math.Round(clamp01(score)*100) / 100
	}
}

// completenessScore measures how many of the optional fields the document
// actually yielded.
func completenessScore(rec *invoice.Record) float64 {
	present, total := 0, 0

	count := func(ok bool) {
		total++
		if ok {
			present++
		}
	}

	count(rec.DueDate != nil)
	count(rec.TaxAmount != nil)
	count(rec.TaxRate != nil)
	count(rec.PaymentTerms != nil)
	count(rec.PaymentStatus != nil)
	count(rec.Vendor.Address != nil)
	count(rec.Vendor.TaxID != nil)
	count(rec.Customer.Address != nil)
	count(len(rec.Items) > 0)

	if total == 0 {
		return 0
	}
	// A record with the required fields alone is still half credible
	return 0.5 + 0.5*float64(present)/float64(total)
}

// fieldValidationScore checks the required fields for plausibility.
func fieldValidationScore(rec *invoice.Record) float64 {
	passed, checks := 0, 0

	check := func(ok bool) {
		checks++
		if ok {
			passed++
		}
	}

	check(strings.TrimSpace(rec.InvoiceNumber) != "")
	check(parseableDate(rec.InvoiceDate))
	check(len(rec.Currency) == 3)
	check(rec.Subtotal >= 0)
	check(rec.Total >= 0)
	check(strings.TrimSpace(rec.Vendor.Name) != "")
	check(strings.TrimSpace(rec.Customer.Name) != "")

	return float64(passed) / float64(checks)
}

// balanceScore checks arithmetic consistency without ever correcting the
// record: item amounts vs subtotal, and subtotal + tax - discount vs total.
func balanceScore(rec *invoice.Record) float64 {
	passed, checks := 0, 0

	if len(rec.Items) > 0 {
		checks++
		sum := 0.0
		for _, it := range rec.Items {
			sum += it.Amount
		}
		if approxEqual(sum, rec.Subtotal) {
			passed++
		}
	}

	checks++
	expected := rec.Subtotal
	if rec.TaxAmount != nil {
		expected += *rec.TaxAmount
	}
	if rec.Discount != nil {
		expected -= *rec.Discount
	}
	if approxEqual(expected, rec.Total) {
		passed++
	}

	return float64(passed) / float64(checks)
}

func parseableDate(s string) bool {
	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"01/02/2006",
		"02-01-2006",
		"2006/01/02",
	}
	for _, f := range formats {
		if _, err := time.Parse(f, s); err == nil {
			return true
		}
	}
	return false
}

func approxEqual(a, b float64) bool {
	tolerance := 0.01 * math.Max(math.Abs(a), math.Abs(b))
	if tolerance < 0.01 {
		tolerance = 0.01
	}
	return math.Abs(a-b) <= tolerance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

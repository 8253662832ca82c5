// merge.go - Deterministic merge policy for multi-language OCR results

package ocr

import "strings"

// MergeTexts merges per-language recognition results into one text blob.
// The input must already be in language-priority order (primary first).
// Each result is trimmed; empty results are dropped; the survivors are
// joined with a newline. All-empty input yields "", which is a legitimate
// degenerate result, not an error.
//
// The policy is a pure function so it can be exercised without a real
// engine.
func MergeTexts(results []string) string {
	kept := make([]string, 0, len(results))
	for _, r := range results {
		r = strings.TrimSpace(r)
		if r != "" {
			kept = append(kept, r)
		}
	}
	return strings.Join(kept, "\n")
}

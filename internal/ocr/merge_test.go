package ocr

import "testing"

func TestMergeTexts(t *testing.T) {
	tests := []struct {
		name    string
		results []string
		want    string
	}{
		{
			name:    "single non-empty result",
			results: []string{"Invoice #123", ""},
			want:    "Invoice #123",
		},
		{
			name:    "two non-empty results join primary first",
			results: []string{"INV-1", "فاتورة-1"},
			want:    "INV-1\nفاتورة-1",
		},
		{
			name:    "all empty yields empty string",
			results: []string{"", "   ", "\n\t"},
			want:    "",
		},
		{
			name:    "whitespace trimmed before joining",
			results: []string{"  Total 50.00  ", "\nVAT 7%\n"},
			want:    "Total 50.00\nVAT 7%",
		},
		{
			name:    "empty middle result dropped without extra newline",
			results: []string{"first", "", "third"},
			want:    "first\nthird",
		},
		{
			name:    "no results",
			results: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeTexts(tt.results)
			if got != tt.want {
				t.Errorf("MergeTexts(%q) = %q, want %q", tt.results, got, tt.want)
			}
		})
	}
}

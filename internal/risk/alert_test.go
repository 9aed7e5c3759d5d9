package risk

import "testing"

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0, SeverityLow},
		{0.399, SeverityLow},
		{0.4, SeverityMedium},
		{0.699, SeverityMedium},
		{0.7, SeverityHigh},
		{1, SeverityHigh},
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.score); got != tc.want {
			t.Fatalf("SeverityFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

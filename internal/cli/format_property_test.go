package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any finite score, FormatScore carries an explicit sign, exactly three
// decimals, and parses back to the score rounded to three places.
func TestProperty_ScoreFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatScore is signed and round-trips", prop.ForAll(
		func(score float64) bool {
			formatted := FormatScore(score)
			if !strings.HasPrefix(formatted, "+") && !strings.HasPrefix(formatted, "-") {
				t.Logf("missing sign for %f: %s", score, formatted)
				return false
			}
			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 3 {
				t.Logf("expected 3 decimals for %f: %s", score, formatted)
				return false
			}
			parsed, err := strconv.ParseFloat(formatted, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-score) <= 0.0005+1e-9
		},
		gen.Float64Range(-100, 100),
	))

	properties.Property("TruncateString never exceeds maxLen", prop.ForAll(
		func(s string, maxLen int) bool {
			got := TruncateString(s, maxLen)
			if len(s) <= maxLen {
				return got == s
			}
			return len(got) == maxLen
		},
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "", want: time.Time{}},
		{in: "90m", want: now.Add(-90 * time.Minute)},
		{in: "7d", want: now.Add(-7 * 24 * time.Hour)},
		{in: "2024-03-01T00:00:00Z", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{in: "-5m", wantErr: true},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSince(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSince(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		250 * time.Millisecond:      "250ms",
		1500 * time.Millisecond:     "1.5s",
		90 * time.Second:            "1m 30s",
		2*time.Hour + 5*time.Minute: "2h 5m",
		50 * time.Hour:              "2d 2h",
	}
	for d, want := range tests {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

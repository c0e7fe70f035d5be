package domain

import "testing"

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		name     string
		counters Counters
		want     int
	}{
		{"all zero", Counters{}, 20},
		{"evidence only", Counters{EvidencePresent: true}, 50},
		{"image only", Counters{HasImage: true}, 50},
		// Image and evidence are the same signal: one bonus, not two.
		{"image and evidence", Counters{HasImage: true, EvidencePresent: true}, 50},
		{"coarse location", Counters{HasLocation: true}, 25},
		{"long summary", Counters{SummaryLength: 51}, 30},
		{"summary at threshold", Counters{SummaryLength: 50}, 20},
		{"verified", Counters{IsVerified: true}, 40},
		{"upvotes", Counters{Upvotes: 4}, 32},
		{"downvotes", Counters{Downvotes: 2}, 10},
		{"flags", Counters{FlagCount: 1}, 10},
		{
			"worked example",
			Counters{
				Upvotes: 4, Downvotes: 1, FlagCount: 0,
				HasImage: true, EvidencePresent: true, IsVerified: true,
				SummaryLength: 60, HasLocation: true,
			},
			92, // 20+30+5+10+20+12-5
		},
		{"clamped at zero", Counters{FlagCount: 5}, 0},
		{"clamped at hundred", Counters{Upvotes: 50, IsVerified: true, HasImage: true}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateConfidence(tt.counters); got != tt.want {
				t.Errorf("CalculateConfidence(%+v) = %d, want %d", tt.counters, got, tt.want)
			}
		})
	}
}

func TestCalculateConfidence_Clamping(t *testing.T) {
	// Any counters, however extreme, stay in [0,100].
	extremes := []Counters{
		{Upvotes: 1_000_000},
		{Downvotes: 1_000_000},
		{FlagCount: 1_000_000},
		{Upvotes: 1_000_000, FlagCount: 1_000_000},
	}

	for _, c := range extremes {
		got := CalculateConfidence(c)
		if got < 0 || got > 100 {
			t.Errorf("CalculateConfidence(%+v) = %d, out of [0,100]", c, got)
		}
	}
}

func TestCalculateConfidence_Monotonicity(t *testing.T) {
	base := Counters{
		Upvotes: 3, Downvotes: 2, FlagCount: 1,
		EvidencePresent: true, SummaryLength: 60,
	}

	for i := 0; i < 40; i++ {
		c := base
		c.Upvotes = base.Upvotes + i
		before := CalculateConfidence(c)
		c.Upvotes++
		after := CalculateConfidence(c)
		if after < before {
			t.Fatalf("adding an upvote dropped the score: %d -> %d at %d upvotes", before, after, c.Upvotes)
		}

		c = base
		c.FlagCount = base.FlagCount + i
		before = CalculateConfidence(c)
		c.FlagCount++
		after = CalculateConfidence(c)
		if after > before {
			t.Fatalf("adding a flag raised the score: %d -> %d at %d flags", before, after, c.FlagCount)
		}
	}
}

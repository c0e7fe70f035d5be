package metrics

import "testing"

func TestInit(t *testing.T) {
	// Should not panic when called
	Init()

	// Should be idempotent (safe to call multiple times)
	Init()
	Init()
}

func TestRecordReportCreated(t *testing.T) {
	Init()

	tests := []struct {
		tag        string
		confidence int
	}{
		{"checkpoint", 35},
		{"vehicle", 20},
		{"raid", 92},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			// Should not panic
			RecordReportCreated(tt.tag, tt.confidence)
		})
	}
}

func TestRecordRejection(t *testing.T) {
	Init()

	for _, reason := range []string{"MISSING_LOCATION", "DESCRIPTION_TOO_SHORT", "UNSAFE_CONTENT"} {
		t.Run(reason, func(t *testing.T) {
			RecordRejection(reason)
		})
	}
}

func TestRecordVote(t *testing.T) {
	Init()

	tests := []struct {
		action   string
		voteType string
	}{
		{"added", "up"},
		{"added", "down"},
		{"changed", "up"},
		{"removed", "down"},
	}

	for _, tt := range tests {
		t.Run(tt.action+"_"+tt.voteType, func(t *testing.T) {
			RecordVote(tt.action, tt.voteType)
		})
	}
}

func TestRecordFlagAndModeration(t *testing.T) {
	Init()

	RecordFlag("spam")
	RecordFlag("false_info")
	RecordAutoHide()
	RecordModeration("hide")
	RecordModeration("verify")
	RecordRateLimited()
}

func TestRecordConfidenceBounds(t *testing.T) {
	Init()

	for _, score := range []int{0, 20, 50, 100} {
		RecordConfidence(score)
	}
}

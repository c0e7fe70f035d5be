package domain

// Counters is the aggregate state of a public report at scoring time.
type Counters struct {
	Upvotes         int
	Downvotes       int
	FlagCount       int
	HasImage        bool
	EvidencePresent bool
	IsVerified      bool
	SummaryLength   int
	HasLocation     bool
}

const (
	baseScore       = 20
	evidenceBonus   = 30
	locationBonus   = 5
	detailBonus     = 10
	verifiedBonus   = 20
	upvoteWeight    = 3
	downvotePenalty = 5
	flagPenalty     = 10

	// detailThreshold is the summary length above which a report earns
	// the longer-description bonus.
	detailThreshold = 50

	// AutoHideFlagThreshold is the unresolved flag count at which a
	// report is hidden automatically. Only moderator action unhides.
	AutoHideFlagThreshold = 3
)

// CalculateConfidence computes a report's 0-100 trust score from its
// current counters. This is a pure, total function with no I/O: any
// input, including all-zero counters, produces a valid clamped integer.
//
// It is invoked after every mutating event (vote, flag, verify toggle,
// flag resolution) and always recomputes from scratch; the stored score
// is never adjusted incrementally.
func CalculateConfidence(c Counters) int {
	// Every report starts with a nonzero floor so new honest reports
	// don't look indistinguishable from spam.
	score := baseScore

	// An uploaded image and locally-held evidence are the same signal;
	// either earns the bonus once, never twice.
	if c.HasImage || c.EvidencePresent {
		score += evidenceBonus
	}
	if c.HasLocation {
		score += locationBonus
	}
	if c.SummaryLength > detailThreshold {
		score += detailBonus
	}
	if c.IsVerified {
		score += verifiedBonus
	}

	score += c.Upvotes * upvoteWeight
	score -= c.Downvotes * downvotePenalty
	score -= c.FlagCount * flagPenalty

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

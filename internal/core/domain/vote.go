package domain

import "fmt"

// VoteType is a voter's stance on a report. The zero value VoteNone
// means the voter has no recorded vote.
type VoteType string

const (
	VoteNone VoteType = ""
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// VoteAction labels what a transition did, for API responses.
type VoteAction string

const (
	VoteAdded   VoteAction = "added"
	VoteChanged VoteAction = "changed"
	VoteRemoved VoteAction = "removed"
)

// VoteTransition is the outcome of applying a vote request to a voter's
// current state. The deltas are applied to the report's counters with a
// floor of zero at the storage layer.
type VoteTransition struct {
	Next          VoteType
	Action        VoteAction
	UpvoteDelta   int
	DownvoteDelta int
}

// ApplyVote runs the per-voter state machine:
//
//	none --up--> up      none --down--> down
//	up   --up--> none    down --down--> none   (toggle off)
//	up --down--> down    down --up--> up       (switch)
//
// Every transition is followed by a full confidence recompute by the
// caller. requested must be VoteUp or VoteDown.
func ApplyVote(current, requested VoteType) (VoteTransition, error) {
	if requested != VoteUp && requested != VoteDown {
		return VoteTransition{}, fmt.Errorf("invalid vote type %q", requested)
	}

	if current == requested {
		// Toggle off.
		t := VoteTransition{Next: VoteNone, Action: VoteRemoved}
		if requested == VoteUp {
			t.UpvoteDelta = -1
		} else {
			t.DownvoteDelta = -1
		}
		return t, nil
	}

	if current == VoteNone {
		t := VoteTransition{Next: requested, Action: VoteAdded}
		if requested == VoteUp {
			t.UpvoteDelta = 1
		} else {
			t.DownvoteDelta = 1
		}
		return t, nil
	}

	// Switch: the old vote comes off, the new one goes on.
	t := VoteTransition{Next: requested, Action: VoteChanged}
	if requested == VoteUp {
		t.UpvoteDelta = 1
		t.DownvoteDelta = -1
	} else {
		t.UpvoteDelta = -1
		t.DownvoteDelta = 1
	}
	return t, nil
}

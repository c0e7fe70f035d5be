package domain

import "testing"

func TestApplyVote(t *testing.T) {
	tests := []struct {
		name      string
		current   VoteType
		requested VoteType
		want      VoteTransition
	}{
		{
			"none up", VoteNone, VoteUp,
			VoteTransition{Next: VoteUp, Action: VoteAdded, UpvoteDelta: 1},
		},
		{
			"none down", VoteNone, VoteDown,
			VoteTransition{Next: VoteDown, Action: VoteAdded, DownvoteDelta: 1},
		},
		{
			"toggle off up", VoteUp, VoteUp,
			VoteTransition{Next: VoteNone, Action: VoteRemoved, UpvoteDelta: -1},
		},
		{
			"toggle off down", VoteDown, VoteDown,
			VoteTransition{Next: VoteNone, Action: VoteRemoved, DownvoteDelta: -1},
		},
		{
			"switch up to down", VoteUp, VoteDown,
			VoteTransition{Next: VoteDown, Action: VoteChanged, UpvoteDelta: -1, DownvoteDelta: 1},
		},
		{
			"switch down to up", VoteDown, VoteUp,
			VoteTransition{Next: VoteUp, Action: VoteChanged, UpvoteDelta: 1, DownvoteDelta: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyVote(tt.current, tt.requested)
			if err != nil {
				t.Fatalf("ApplyVote(%q, %q) returned error: %v", tt.current, tt.requested, err)
			}
			if got != tt.want {
				t.Errorf("ApplyVote(%q, %q) = %+v, want %+v", tt.current, tt.requested, got, tt.want)
			}
		})
	}
}

func TestApplyVote_InvalidRequest(t *testing.T) {
	for _, requested := range []VoteType{VoteNone, "sideways"} {
		if _, err := ApplyVote(VoteNone, requested); err == nil {
			t.Errorf("ApplyVote(none, %q) should fail", requested)
		}
	}
}

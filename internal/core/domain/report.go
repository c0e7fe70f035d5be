package domain

import "time"

type ReportTag string

const (
	TagVehicle    ReportTag = "vehicle"
	TagCheckpoint ReportTag = "checkpoint"
	TagDetention  ReportTag = "detention"
	TagRaid       ReportTag = "raid"
	TagUnknown    ReportTag = "unknown"
)

// ValidTag reports whether t is one of the closed tag enum values.
func ValidTag(t ReportTag) bool {
	switch t {
	case TagVehicle, TagCheckpoint, TagDetention, TagRaid, TagUnknown:
		return true
	}
	return false
}

// DraftIncident is the raw, client-held incident record before any
// privacy transformation. Lat/Lng are pointers so that "not supplied"
// is distinguishable from a genuine 0.0 coordinate.
type DraftIncident struct {
	Lat              *float64
	Lng              *float64
	EventTime        string // RFC3339, full precision as observed
	City             string
	State            string
	Tag              ReportTag // optional; inferred from description when empty
	Description      string
	AttachmentsCount int
}

// SanitizedReport is the privacy-preserving payload produced by Sanitize.
// Coordinates are jittered and rounded, the event time is bucketed, and
// the summary has been redacted and length-capped. Nothing in here can
// pinpoint an exact location, an exact time, or a person.
type SanitizedReport struct {
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	EventTime       time.Time `json:"event_time"`
	City            string    `json:"city,omitempty"`
	State           string    `json:"state,omitempty"`
	Tag             ReportTag `json:"tag"`
	Summary         string    `json:"summary"`
	EvidencePresent bool      `json:"evidence_present"`
}

// Report is the stored public record: the sanitized payload plus the
// server-side aggregate counters that drive the confidence score.
type Report struct {
	ID              string
	EventTimeBucket time.Time
	LatApprox       float64
	LngApprox       float64
	City            string
	State           string
	Tag             ReportTag
	Summary         string
	EvidencePresent bool
	ImageURL        string
	Upvotes         int
	Downvotes       int
	FlagCount       int
	IsVerified      bool
	IsHidden        bool
	Confidence      int
	CreatedAt       time.Time
}

// Counters is the aggregate state the scorer reads. It is always
// re-read in full before a recompute; the score is never maintained
// as a running delta.
func (r *Report) Counters() Counters {
	return Counters{
		Upvotes:         r.Upvotes,
		Downvotes:       r.Downvotes,
		FlagCount:       r.FlagCount,
		HasImage:        r.ImageURL != "",
		EvidencePresent: r.EvidencePresent,
		IsVerified:      r.IsVerified,
		SummaryLength:   len(r.Summary),
		HasLocation:     r.City != "" && r.State != "",
	}
}

type FlagReason string

const (
	FlagSpam         FlagReason = "spam"
	FlagFalseInfo    FlagReason = "false_info"
	FlagHarassment   FlagReason = "harassment"
	FlagPersonalInfo FlagReason = "personal_info"
	FlagOther        FlagReason = "other"
)

func ValidFlagReason(r FlagReason) bool {
	switch r {
	case FlagSpam, FlagFalseInfo, FlagHarassment, FlagPersonalInfo, FlagOther:
		return true
	}
	return false
}

// Flag is a community report-of-a-report. Unresolved flags subtract from
// the confidence score and count toward the auto-hide threshold.
type Flag struct {
	ID          int64
	ReportID    string
	Fingerprint string
	Reason      FlagReason
	Details     string
	IsResolved  bool
	CreatedAt   time.Time
}

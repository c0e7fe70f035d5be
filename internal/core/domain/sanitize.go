package domain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// Rejection is an expected, user-recoverable sanitization outcome.
// Callers branch on these and surface the specific failed precondition;
// they are never downgraded to "post anyway".
type Rejection string

const (
	RejectMissingLocation     Rejection = "MISSING_LOCATION"
	RejectDescriptionTooShort Rejection = "DESCRIPTION_TOO_SHORT"
	RejectUnsafeContent       Rejection = "UNSAFE_CONTENT"
)

func (r Rejection) Error() string { return string(r) }

// ErrMalformedInput covers drafts the sanitizer refuses to interpret at
// all (coordinates out of range, unparseable timestamps). Distinct from
// a Rejection: the sanitizer fails closed rather than guessing.
var ErrMalformedInput = errors.New("malformed draft input")

const (
	// MinDescriptionLength is the floor on a trimmed draft description.
	MinDescriptionLength = 10

	// MaxSummaryLength caps the public summary after redaction.
	MaxSummaryLength = 280

	// TimeBucket is the window event timestamps are floored to.
	TimeBucket = 30 * time.Minute

	coordPrecision = 1000 // 3 decimal places, ~111m grid cells
	jitterRange    = 0.002
)

type RuleKind int

const (
	RuleRedact RuleKind = iota
	RuleReject
)

// TextRule is one entry of the content policy. Redact rules scrub
// incidental identifying detail and let the report proceed; reject rules
// fire on intent that redaction cannot neutralize.
type TextRule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    RuleKind
}

// redactionRules are applied in order to the description. The patterns
// deliberately do not match the [REDACTED] token itself, so a second
// pass over already-redacted text is a no-op.
var redactionRules = []TextRule{
	{
		Name:    "street_address",
		Pattern: regexp.MustCompile(`(?i)\b\d+\s+(street|st|avenue|ave|road|rd|lane|ln|drive|dr|court|ct|place|pl|boulevard|blvd)\b`),
		Kind:    RuleRedact,
	},
	{
		Name:    "phone_number",
		Pattern: regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
		Kind:    RuleRedact,
	},
	{
		Name:    "email",
		Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Kind:    RuleRedact,
	},
	{
		Name:    "unit_number",
		Pattern: regexp.MustCompile(`(?i)\b(apartment|apt|unit|suite|ste)\s*#?\s*\d+\b`),
		Kind:    RuleRedact,
	},
	{
		Name:    "zip_code",
		Pattern: regexp.MustCompile(`\b\d{5}(-\d{4})?\b`),
		Kind:    RuleRedact,
	},
	{
		Name:    "license_plate",
		Pattern: regexp.MustCompile(`(?i)\b(license\s*plate|plate\s*#?|tag\s*#?)\s*:?\s*[A-Z0-9]{4,8}\b`),
		Kind:    RuleRedact,
	},
}

// dangerousWords hard-reject the whole draft: content suggesting intent
// to harm or identify a person is not salvageable by redaction.
var dangerousWords = []string{
	"kill", "attack", "shoot", "murder", "assault", "hurt",
	"target", "doxx", "dox", "expose their",
}

// rejectionRules fire on the original text before any redaction is
// attempted. Currently one entry: a recognizable numbered street
// address, which together with a time bucket could pin down a location.
var rejectionRules = []TextRule{
	{
		Name:    "address_shape",
		Pattern: regexp.MustCompile(`(?i)\d+\s+[a-z]+\s+(st|street|ave|avenue|rd|road|dr|drive|ln|lane)\b`),
		Kind:    RuleReject,
	},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// tagKeywords is evaluated top-down, first match wins. Order matters:
// "vehicle near a checkpoint" must resolve to checkpoint, not vehicle.
var tagKeywords = []struct {
	Keywords []string
	Tag      ReportTag
}{
	{[]string{"checkpoint", "roadblock"}, TagCheckpoint},
	{[]string{"detention", "arrested", "detained"}, TagDetention},
	{[]string{"raid", "house", "workplace"}, TagRaid},
	{[]string{"vehicle", "car", "van", "suv"}, TagVehicle},
}

// Sanitize transforms a raw draft into a privacy-preserving public
// payload, or returns a Rejection naming the failed precondition.
// Pure and stateless: no network, no storage, safe under any amount of
// concurrency.
func Sanitize(d DraftIncident) (*SanitizedReport, error) {
	if d.Lat == nil || d.Lng == nil {
		return nil, RejectMissingLocation
	}
	if *d.Lat < -90 || *d.Lat > 90 || *d.Lng < -180 || *d.Lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrMalformedInput, *d.Lat, *d.Lng)
	}

	desc := strings.TrimSpace(d.Description)
	if len(desc) < MinDescriptionLength {
		return nil, RejectDescriptionTooShort
	}

	if ContainsUnsafeContent(desc) {
		return nil, RejectUnsafeContent
	}

	eventTime, err := time.Parse(time.RFC3339, d.EventTime)
	if err != nil {
		return nil, fmt.Errorf("%w: event time %q: %v", ErrMalformedInput, d.EventTime, err)
	}

	lat, lng := JitterCoordinates(*d.Lat, *d.Lng)

	tag := d.Tag
	if tag == "" || !ValidTag(tag) {
		tag = InferTag(desc)
	}

	return &SanitizedReport{
		Lat:             lat,
		Lng:             lng,
		EventTime:       BucketTime(eventTime),
		City:            SanitizeText(d.City, 100),
		State:           SanitizeText(d.State, 50),
		Tag:             tag,
		Summary:         SanitizeText(desc, MaxSummaryLength),
		EvidencePresent: d.AttachmentsCount > 0,
	}, nil
}

// RoundCoordinates quantizes a coordinate pair to 3 decimal places,
// ~111m grid cells. Neighborhood-level accuracy, never an exact spot.
func RoundCoordinates(lat, lng float64) (float64, float64) {
	return math.Round(lat*coordPrecision) / coordPrecision,
		math.Round(lng*coordPrecision) / coordPrecision
}

// JitterCoordinates perturbs ±0.001° before rounding. The jitter is
// layered on top of grid quantization so repeated reports from one exact
// spot don't all collapse onto the same grid point, which combined with
// bucketed time could re-identify a location.
func JitterCoordinates(lat, lng float64) (float64, float64) {
	jitter := func() float64 { return (rand.Float64() - 0.5) * jitterRange }
	return RoundCoordinates(lat+jitter(), lng+jitter())
}

// BucketTime floors a timestamp to the start of its 30-minute window
// (14:47 → 14:30, 14:15 → 14:00) in UTC. Idempotent.
func BucketTime(t time.Time) time.Time {
	t = t.UTC()
	return t.Truncate(TimeBucket)
}

// SanitizeText runs the redaction rule table over text, collapses
// whitespace, and caps the result at maxLength (truncating to
// maxLength-3 plus "..." when over).
func SanitizeText(text string, maxLength int) string {
	sanitized := text
	for _, rule := range redactionRules {
		sanitized = rule.Pattern.ReplaceAllString(sanitized, "[REDACTED]")
	}

	sanitized = strings.TrimSpace(whitespaceRun.ReplaceAllString(sanitized, " "))

	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength-3] + "..."
	}
	return sanitized
}

// ContainsUnsafeContent reports whether text trips the hard-reject
// policy: violence or doxxing intent, or a recognizable street address.
func ContainsUnsafeContent(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range dangerousWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	for _, rule := range rejectionRules {
		if rule.Pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// InferTag picks the report tag from description keywords using the
// priority list; TagUnknown when nothing matches.
func InferTag(description string) ReportTag {
	lower := strings.ToLower(description)
	for _, entry := range tagKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Tag
			}
		}
	}
	return TagUnknown
}

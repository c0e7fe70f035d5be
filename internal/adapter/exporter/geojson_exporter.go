package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
)

// GeoJSONExporter exports visible reports as a GeoJSON FeatureCollection
// for the public map. Only already-sanitized fields leave this process:
// approximate coordinates, bucketed times, redacted summaries.
type GeoJSONExporter struct {
	repo ports.ReportRepository
}

func NewGeoJSONExporter(repo ports.ReportRepository) *GeoJSONExporter {
	return &GeoJSONExporter{repo: repo}
}

// Export generates a GeoJSON feed of reports created since the given
// time. Defaults to the last 7 days when no time is specified.
func (e *GeoJSONExporter) Export(ctx context.Context, since time.Time) (string, error) {
	if since.IsZero() {
		since = time.Now().Add(-7 * 24 * time.Hour)
	}

	reports, err := e.repo.ListSince(ctx, since, 10000)
	if err != nil {
		return "", fmt.Errorf("failed to fetch reports: %w", err)
	}

	collection := FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}

	for _, r := range reports {
		collection.Features = append(collection.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type: "Point",
				// GeoJSON positions are [lng, lat]
				Coordinates: [2]float64{r.LngApprox, r.LatApprox},
			},
			Properties: FeatureProperties{
				ID:              r.ID,
				EventTimeBucket: r.EventTimeBucket.UTC().Format(time.RFC3339),
				City:            r.City,
				State:           r.State,
				Tag:             string(r.Tag),
				Summary:         r.Summary,
				Confidence:      r.Confidence,
				Upvotes:         r.Upvotes,
				Downvotes:       r.Downvotes,
				IsVerified:      r.IsVerified,
				EvidencePresent: r.EvidencePresent,
				ImageURL:        r.ImageURL,
			},
		})
	}

	jsonData, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	return string(jsonData), nil
}

// GeoJSON structures (RFC 7946)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type FeatureProperties struct {
	ID              string `json:"id"`
	EventTimeBucket string `json:"event_time_bucket"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Tag             string `json:"tag"`
	Summary         string `json:"summary"`
	Confidence      int    `json:"confidence"`
	Upvotes         int    `json:"upvotes"`
	Downvotes       int    `json:"downvotes"`
	IsVerified      bool   `json:"is_verified"`
	EvidencePresent bool   `json:"evidence_present"`
	ImageURL        string `json:"image_url,omitempty"`
}
